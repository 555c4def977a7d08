package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

func attached(t *testing.T) (*State, *admin.Registry) {
	t.Helper()
	s := NewState()
	r := admin.NewRegistry()
	s.Attach(r)
	return s, r
}

func dispatch(t *testing.T, r *admin.Registry, packets ...protocol.Packet) {
	t.Helper()
	for _, p := range packets {
		require.NoError(t, r.Dispatch(nil, p), p.Type().String())
	}
}

func TestWelcomeAndDate(t *testing.T) {
	s, r := attached(t)

	dispatch(t, r,
		protocol.ProtocolInfo{Version: 3},
		protocol.Welcome{
			ServerName: "Public #1",
			Version:    "14.1",
			Dedicated:  true,
			MapName:    "Random Map",
			Seed:       42,
			Landscape:  protocol.LandscapeSubArctic,
			StartDate:  701265,
			MapHeight:  256,
			MapWidth:   512,
		},
		protocol.Date{Days: 701265},
	)

	snap := s.Snapshot()
	assert.True(t, snap.Online)
	assert.Equal(t, "Public #1", snap.Server.Name)
	assert.Equal(t, "sub_arctic", snap.Server.Landscape)
	assert.Equal(t, uint8(3), snap.Server.ProtocolVersion)
	assert.Equal(t, 1920, snap.Server.StartDate.Year())
	assert.Equal(t, "1920-01-01", snap.Date)

	dispatch(t, r, protocol.Shutdown{})
	assert.False(t, s.Snapshot().Online)
}

func TestClientLifecycle(t *testing.T) {
	s, r := attached(t)

	dispatch(t, r, protocol.ClientJoin{ID: 7})
	c, ok := s.Client(7)
	require.True(t, ok)
	assert.Equal(t, CompanySpectator, c.CompanyID)

	dispatch(t, r,
		protocol.ClientInfo{ID: 7, IP: "10.0.0.1", Name: "alice", Language: 1, Joined: 701265, CompanyID: 0},
		protocol.ClientUpdate{ID: 7, Name: "alice2", CompanyID: 2},
		protocol.ClientInfo{ID: 3, Name: "bob", CompanyID: CompanySpectator},
	)

	clients := s.Clients()
	require.Len(t, clients, 2)
	assert.Equal(t, uint32(3), clients[0].ID)
	assert.Equal(t, "alice2", clients[1].Name)
	assert.Equal(t, "10.0.0.1", clients[1].IP)
	assert.Equal(t, uint8(2), clients[1].CompanyID)

	dispatch(t, r, protocol.ClientQuit{ID: 7}, protocol.ClientError{ID: 3, Error: protocol.ErrorConnectionLost})
	assert.Empty(t, s.Clients())
}

func TestCompanyLifecycle(t *testing.T) {
	s, r := attached(t)

	var economy protocol.CompanyEconomy
	economy.ID = 1
	economy.Money = 100000
	economy.Loan = 300000
	economy.DeliveredCargo = 12
	economy.Quarters[0] = protocol.QuarterlyInfo{CompanyValue: 5000, Performance: 400}

	var stats protocol.CompanyStats
	stats.ID = 1
	stats.Vehicles[protocol.VehicleBus] = 4

	dispatch(t, r,
		protocol.CompanyNew{ID: 1},
		protocol.CompanyInfo{ID: 1, Name: "Acme", Manager: "W. Coyote", Colour: 4, StartYear: 1950},
		economy,
		stats,
		protocol.CompanyUpdate{ID: 1, Name: "Acme Transport", Manager: "W. Coyote", Colour: 4, Passworded: true},
	)

	c, ok := s.Company(1)
	require.True(t, ok)
	assert.Equal(t, "Acme Transport", c.Name)
	assert.Equal(t, "red", c.Colour)
	assert.True(t, c.Passworded)
	assert.Equal(t, uint32(1950), c.StartYear)
	assert.Equal(t, uint64(100000), c.Money)
	assert.Equal(t, uint64(5000), c.Value)
	assert.Equal(t, uint16(400), c.Performance)
	assert.Equal(t, uint16(4), c.Vehicles["bus"])
	assert.Equal(t, uint16(0), c.Vehicles["train"])

	dispatch(t, r, protocol.CompanyRemove{ID: 1, Reason: protocol.RemoveManual})
	assert.Empty(t, s.Companies())
}

func TestNewGameResets(t *testing.T) {
	s, r := attached(t)

	dispatch(t, r,
		protocol.Welcome{ServerName: "srv"},
		protocol.Date{Days: 701265},
		protocol.ClientInfo{ID: 1, Name: "x"},
		protocol.CompanyNew{ID: 0},
		protocol.NewGame{},
	)

	snap := s.Snapshot()
	assert.Empty(t, snap.Clients)
	assert.Empty(t, snap.Companies)
	assert.Empty(t, snap.Date)
	assert.Equal(t, "srv", snap.Server.Name)
}

func TestWelcomeResets(t *testing.T) {
	s, r := attached(t)

	dispatch(t, r,
		protocol.Welcome{ServerName: "a"},
		protocol.ClientInfo{ID: 1},
		protocol.Welcome{ServerName: "b"},
	)

	assert.Empty(t, s.Clients())
	assert.Equal(t, "b", s.Snapshot().Server.Name)
}

func TestCmdNamesAccumulate(t *testing.T) {
	s, r := attached(t)

	dispatch(t, r,
		protocol.CmdNames{Names: []string{"CmdBuildRailroadTrack"}},
		protocol.CmdNames{Names: []string{"CmdBuildRoad"}},
	)
	names := s.CmdNames()
	assert.Equal(t, []string{"CmdBuildRailroadTrack", "CmdBuildRoad"}, names)

	names[0] = "mutated"
	assert.Equal(t, "CmdBuildRailroadTrack", s.CmdNames()[0])
}

func TestSnapshotJSON(t *testing.T) {
	s, r := attached(t)
	dispatch(t, r, protocol.Welcome{ServerName: "srv"}, protocol.ClientInfo{ID: 2, Name: "eve"})

	raw, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, true, decoded["online"])
	assert.Equal(t, float64(1), decoded["client_count"])
	assert.NotContains(t, decoded, "date")
}
