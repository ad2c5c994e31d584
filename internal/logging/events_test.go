package logging

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

func TestLogDomainEvent(t *testing.T) {
	data := &sinkData{}
	logger := logr.New(&capturingSink{data: data})

	LogDomainEvent(logger, "make_right_complete", map[string]string{
		"namespace": "ns1",
		"domainUID": "uid1",
		"plan":      "up",
	})

	assert.Equal(t, "domain lifecycle event", data.msg)

	kvMap := make(map[string]interface{})
	for i := 0; i+1 < len(data.keysAndValues); i += 2 {
		if k, ok := data.keysAndValues[i].(string); ok {
			kvMap[k] = data.keysAndValues[i+1]
		}
	}

	assert.Equal(t, "true", kvMap["milestone"])
	assert.Equal(t, "make_right_complete", kvMap["event"])
	assert.Equal(t, "ns1", kvMap["namespace"])
	assert.Equal(t, "uid1", kvMap["domainUID"])
	assert.Equal(t, "up", kvMap["plan"])
}

type sinkData struct {
	msg           string
	keysAndValues []interface{}
}

// capturingSink records the last emitted line and the WithValues pairs that
// accumulated on the way to it.
type capturingSink struct {
	data     *sinkData
	localKVs []interface{}
}

func (s *capturingSink) Init(logr.RuntimeInfo) {}
func (s *capturingSink) Enabled(int) bool      { return true }

func (s *capturingSink) Info(_ int, msg string, keysAndValues ...interface{}) {
	s.data.msg = msg
	all := append([]interface{}{}, s.localKVs...)
	s.data.keysAndValues = append(all, keysAndValues...)
}

func (s *capturingSink) Error(_ error, msg string, keysAndValues ...interface{}) {
	s.data.msg = msg
	all := append([]interface{}{}, s.localKVs...)
	s.data.keysAndValues = append(all, keysAndValues...)
}

func (s *capturingSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	return &capturingSink{data: s.data, localKVs: append(s.localKVs, keysAndValues...)}
}

func (s *capturingSink) WithName(string) logr.LogSink { return s }
