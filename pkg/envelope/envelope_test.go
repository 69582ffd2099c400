package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizes(t *testing.T) {
	env, err := New(TypeMessage, "general", "alice", map[string]string{"text": "hi"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, Version, env.Version)
	assert.NotNil(t, env.Attributes)
	assert.False(t, env.CreatedAt.IsZero())

	var payload map[string]string
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, "hi", payload["text"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     *Envelope
		wantErr string
	}{
		{name: "nil", env: nil, wantErr: "envelope is nil"},
		{name: "no type", env: &Envelope{Channel: "c"}, wantErr: "type is required"},
		{name: "no channel", env: &Envelope{Type: TypeTyping}, wantErr: "channel is required"},
		{name: "bad version", env: &Envelope{Type: TypeTyping, Channel: "c", Version: "1999-01"}, wantErr: "unsupported envelope version 1999-01"},
		{name: "ok", env: &Envelope{Type: TypeTyping, Channel: "c", Version: Version}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.env)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestUnmarshalRejectsInvalidFrame(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"message"}`))
	assert.EqualError(t, err, "channel is required")
}

func TestStampTrace(t *testing.T) {
	env := &Envelope{}
	StampTrace(env, "abc")
	assert.Equal(t, "abc", env.TraceID)
	assert.Equal(t, "abc", env.Attributes["trace_id"])
}
