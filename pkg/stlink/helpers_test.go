package stlink

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func quietLogger() *logrus.Entry {
	log, _ := logtest.NewNullLogger()
	return logrus.NewEntry(log)
}

func newSimRegistry(backend *SimBackend, opts ...Option) *Registry {
	base := []Option{
		WithBackend(backend.Factory()),
		WithSettleDelay(0),
		WithLogger(quietLogger()),
	}
	return NewRegistry(append(base, opts...)...)
}

// openSim opens the single probe p and closes everything when the test ends.
func openSim(t *testing.T, p *SimProbe, policy ResetPolicy) *Session {
	t.Helper()
	reg := newSimRegistry(NewSimBackend(p))
	s, err := reg.Open(MatchCriteria{}, policy)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { reg.CloseAll() })
	return s
}

func hasCommand(cmds [][]byte, prefix ...byte) bool {
	for _, c := range cmds {
		if len(c) >= len(prefix) && string(c[:len(prefix)]) == string(prefix) {
			return true
		}
	}
	return false
}
