package safety

import "path"

// matchGlob reports whether name matches pattern, treating a pattern with
// no glob metacharacters as a directory-prefix match as well as a literal
// one — the same convention internal/workspace uses for allow/deny-list
// matching, kept consistent here for boundary-violation checks.
func matchGlob(pattern, name string) (bool, error) {
	if ok, err := path.Match(pattern, name); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	clean := path.Clean(pattern)
	return name == clean || len(name) > len(clean) && name[:len(clean)+1] == clean+"/", nil
}
