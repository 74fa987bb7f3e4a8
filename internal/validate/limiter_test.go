package validate

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody_AcceptsSmallValidJSON(t *testing.T) {
	l := NewBodyLimiter()
	req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"a":1}`))
	data, err := l.ReadBody(req)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestReadBody_RejectsOversizedBody(t *testing.T) {
	l := &BodyLimiter{MaxBodyBytes: 4, MaxJSONDepth: 20}
	req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"a":1}`))
	_, err := l.ReadBody(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestReadBody_RejectsInvalidJSON(t *testing.T) {
	l := NewBodyLimiter()
	req := httptest.NewRequest("POST", "/x", strings.NewReader(`{not json`))
	_, err := l.ReadBody(req)
	require.Error(t, err)
}

func TestReadBody_RejectsExcessiveNestingDepth(t *testing.T) {
	l := &BodyLimiter{MaxBodyBytes: 10 << 20, MaxJSONDepth: 2}
	nested := strings.Repeat("[", 3) + "1" + strings.Repeat("]", 3)
	req := httptest.NewRequest("POST", "/x", strings.NewReader(nested))
	_, err := l.ReadBody(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting depth")
}

func TestReadBody_EmptyBodySkipsJSONCheck(t *testing.T) {
	l := NewBodyLimiter()
	req := httptest.NewRequest("POST", "/x", strings.NewReader(""))
	data, err := l.ReadBody(req)
	require.NoError(t, err)
	assert.Empty(t, data)
}
