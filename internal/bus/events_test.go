package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInboundMessage_SessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "123456"}
	assert.Equal(t, "telegram:123456", msg.SessionKey())
}

func TestInboundMessage_SessionKey_EmptyParts(t *testing.T) {
	msg := InboundMessage{}
	assert.Equal(t, ":", msg.SessionKey())
}
