package runloop

// Source is a readable file descriptor watched by the loop.
type Source struct {
	fd      int
	handler func(fd int)
	loop    *Loop
	removed bool
}

// AddSource watches fd and calls h on the loop goroutine whenever it is readable.
// h must consume the pending data or the next poll reports the fd again.
func (l *Loop) AddSource(fd int, h func(fd int)) *Source {
	s := &Source{fd: fd, handler: h, loop: l}
	l.sources = append(l.sources, s)
	return s
}

// Remove stops watching the descriptor.
func (s *Source) Remove() {
	if s.removed {
		return
	}
	s.removed = true

	l := s.loop
	for i, v := range l.sources {
		if v == s {
			l.sources = append(l.sources[:i], l.sources[i+1:]...)
			return
		}
	}
}
