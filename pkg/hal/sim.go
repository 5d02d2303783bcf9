package hal

import "sync"

// Sim is an in-memory IO implementation for tests and desktop runs
// without hardware. Sensor channels can be scripted via Set.
type Sim struct {
	mu   sync.Mutex
	regs [numChannels]int32
}

// NewSim creates a simulation with a clear obstacle path and a full
// battery.
func NewSim() *Sim {
	s := &Sim{}
	s.regs[ChanDistanceCm] = 400
	s.regs[ChanBatteryMV] = 4200
	return s
}

// Get reads a simulated register.
func (s *Sim) Get(ch Channel) (int32, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[ch], nil
}

// Set writes a simulated register.
func (s *Sim) Set(ch Channel, value int32) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[ch] = value
	return nil
}
