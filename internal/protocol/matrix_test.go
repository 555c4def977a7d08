package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFrequency(t *testing.T) {
	assert.ErrorIs(t, CheckFrequency(UpdateDate, FrequencyAutomatic), ErrInvalidFrequency)
	assert.NoError(t, CheckFrequency(UpdateDate, FrequencyDaily))
	assert.NoError(t, CheckFrequency(UpdateChat, FrequencyAutomatic))
	assert.ErrorIs(t, CheckFrequency(UpdateChat, FrequencyDaily), ErrInvalidFrequency)
	assert.ErrorIs(t, CheckFrequency(UpdateCmdNames, FrequencyAutomatic), ErrInvalidFrequency)
	assert.ErrorIs(t, CheckFrequency(UpdateEnd, FrequencyPoll), ErrInvalidFrequency)
}

func TestEveryUpdateTypeHasFrequencies(t *testing.T) {
	for u := UpdateType(0); u < UpdateEnd; u++ {
		assert.NotEmpty(t, AllowedFrequencies(u), u.String())
	}
}

func TestAllowedFrequenciesReturnsCopy(t *testing.T) {
	got := AllowedFrequencies(UpdateChat)
	got[0] = FrequencyDaily
	assert.True(t, Allowed(UpdateChat, FrequencyAutomatic))
	assert.False(t, Allowed(UpdateChat, FrequencyDaily))
}

func TestParseNames(t *testing.T) {
	u, err := ParseUpdateType(" Company_Economy ")
	require.NoError(t, err)
	assert.Equal(t, UpdateCompanyEconomy, u)

	f, err := ParseUpdateFrequency("quarterly")
	require.NoError(t, err)
	assert.Equal(t, FrequencyQuarterly, f)

	_, err = ParseUpdateType("weather")
	assert.Error(t, err)
	_, err = ParseUpdateFrequency("hourly")
	assert.Error(t, err)
}

func TestEnumJSON(t *testing.T) {
	b, err := json.Marshal(map[string]any{"type": UpdateChat, "frequency": FrequencyAutomatic})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","frequency":"automatic"}`, string(b))
}

func TestPacketTypeDirection(t *testing.T) {
	assert.True(t, AdminJoin.IsAdmin())
	assert.True(t, AdminExternalChat.IsAdmin())
	assert.False(t, ServerDate.IsAdmin())
	assert.True(t, ServerCmdLogging.IsServer())
	assert.False(t, InvalidPacket.IsServer())
	assert.Equal(t, "SERVER_DATE", ServerDate.String())
}

func TestPacketBuilder(t *testing.T) {
	b := NewPacketBuilder().
		WriteUint8(1).
		WriteBool(true).
		WriteUint16(0x0302).
		WriteUint32(0x07060504).
		WriteNullString("ab")
	assert.Equal(t, 11, b.Len())
	assert.Equal(t, []byte{1, 1, 2, 3, 4, 5, 6, 7, 'a', 'b', 0}, b.Build())

	frame, err := b.BuildFrame(ServerConsole)
	require.NoError(t, err)
	assert.Equal(t, []byte{14, 0, byte(ServerConsole)}, frame[:HeaderSize])

	b.Reset()
	b.WriteBytes(make([]byte, MaxPacketSize))
	_, err = b.BuildFrame(ServerConsole)
	assert.Error(t, err)
}
