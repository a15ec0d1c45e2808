// Command wave is the control binary for the WAVE session orchestrator
// (spec §6): it starts, inspects, pauses, resumes, and aborts sessions
// either as one-shot CLI calls against a local process or, under
// `wave serve`, as a long-running HTTP control surface.
package main

func main() {
	Execute()
}
