package unwrap

// Scope collects release actions for acquired resources. Close runs them in
// reverse order of acquisition.
type Scope struct {
	releases []release
}

type release struct {
	name string
	fn   func() error
}

// Defer registers fn to undo the acquisition described by name.
func (s *Scope) Defer(name string, fn func() error) {
	s.releases = append(s.releases, release{name, fn})
}

// Close runs all release actions, newest first. Failures are logged and
// otherwise ignored. Calling Close again is a no-op.
func (s *Scope) Close() {
	for idx := len(s.releases) - 1; idx >= 0; idx-- {
		r := s.releases[idx]
		if err := r.fn(); err != nil {
			Warningf("Failed to %s: %v", r.name, err)
		}
	}
	s.releases = nil
}
