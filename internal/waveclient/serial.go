package waveclient

import "sync"

// serial выполняет задачи строго по одной. Первый вызвавший становится
// исполнителем и крутит очередь, пока она не опустеет; остальные (в том числе
// повторные вызовы изнутри задачи) только ставят задачу в очередь.
type serial struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

func (s *serial) do(task func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.run()
}

func (s *serial) run() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.tasks = nil
			s.running = false
			s.mu.Unlock()
			return
		}
		t := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		t()
	}
}
