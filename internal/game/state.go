// Package game keeps an in-memory mirror of the server, its clients and its
// companies, maintained from the packets a session dispatches.
package game

import (
	"sort"
	"sync"
	"time"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// CompanySpectator is the company id of clients not playing in a company.
const CompanySpectator uint8 = 255

// ServerInfo describes the running game.
type ServerInfo struct {
	Name            string    `json:"name"`
	Version         string    `json:"version"`
	Dedicated       bool      `json:"dedicated"`
	MapName         string    `json:"map_name"`
	Seed            uint32    `json:"seed"`
	Landscape       string    `json:"landscape"`
	StartDate       time.Time `json:"start_date"`
	MapWidth        uint16    `json:"map_width"`
	MapHeight       uint16    `json:"map_height"`
	ProtocolVersion uint8     `json:"protocol_version"`
}

// Client holds information about a connected client.
type Client struct {
	ID        uint32    `json:"id"`
	Name      string    `json:"name"`
	IP        string    `json:"ip"`
	Language  uint8     `json:"language"`
	Joined    time.Time `json:"joined"`
	CompanyID uint8     `json:"company_id"`
	SeenAt    time.Time `json:"seen_at"`
}

// Company holds what is known about a company.
type Company struct {
	ID               uint8             `json:"id"`
	Name             string            `json:"name"`
	Manager          string            `json:"manager"`
	Colour           string            `json:"colour"`
	Passworded       bool              `json:"passworded"`
	StartYear        uint32            `json:"start_year"`
	IsAI             bool              `json:"is_ai"`
	QuartersBankrupt uint8             `json:"quarters_bankrupt"`
	Money            uint64            `json:"money"`
	Loan             uint64            `json:"loan"`
	Value            uint64            `json:"value"`
	Performance      uint16            `json:"performance"`
	DeliveredCargo   uint16            `json:"delivered_cargo"`
	Vehicles         map[string]uint16 `json:"vehicles,omitempty"`
}

// State is a thread-safe mirror of the server.
type State struct {
	mu sync.RWMutex

	online    bool
	server    ServerInfo
	date      time.Time
	clients   map[uint32]Client
	companies map[uint8]Company
	cmdNames  []string
	lastPong  time.Time

	updatedAt time.Time
}

// NewState creates an empty mirror.
func NewState() *State {
	return &State{
		clients:   make(map[uint32]Client),
		companies: make(map[uint8]Company),
	}
}

// Attach registers the mirror's handlers on r.
func (s *State) Attach(r *admin.Registry) {
	admin.On(r, func(_ *admin.Session, p protocol.ProtocolInfo) error {
		s.update(func() { s.server.ProtocolVersion = p.Version })
		return nil
	})
	admin.On(r, func(_ *admin.Session, w protocol.Welcome) error {
		s.ApplyWelcome(w)
		return nil
	})
	admin.On(r, func(_ *admin.Session, _ protocol.NewGame) error {
		s.Reset()
		return nil
	})
	admin.On(r, func(_ *admin.Session, _ protocol.Shutdown) error {
		s.update(func() { s.online = false })
		return nil
	})
	admin.On(r, func(_ *admin.Session, d protocol.Date) error {
		s.update(func() { s.date = d.Time() })
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.Pong) error {
		s.update(func() { s.lastPong = time.Now() })
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.CmdNames) error {
		s.update(func() { s.cmdNames = append(s.cmdNames, p.Names...) })
		return nil
	})

	admin.On(r, func(_ *admin.Session, p protocol.ClientJoin) error {
		s.update(func() {
			c := s.clients[p.ID]
			c.ID = p.ID
			c.CompanyID = CompanySpectator
			c.SeenAt = time.Now()
			s.clients[p.ID] = c
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.ClientInfo) error {
		s.update(func() {
			s.clients[p.ID] = Client{
				ID:        p.ID,
				Name:      p.Name,
				IP:        p.IP,
				Language:  p.Language,
				Joined:    protocol.GameDate(p.Joined),
				CompanyID: p.CompanyID,
				SeenAt:    time.Now(),
			}
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.ClientUpdate) error {
		s.update(func() {
			c := s.clients[p.ID]
			c.ID = p.ID
			c.Name = p.Name
			c.CompanyID = p.CompanyID
			c.SeenAt = time.Now()
			s.clients[p.ID] = c
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.ClientQuit) error {
		s.update(func() { delete(s.clients, p.ID) })
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.ClientError) error {
		s.update(func() { delete(s.clients, p.ID) })
		return nil
	})

	admin.On(r, func(_ *admin.Session, p protocol.CompanyNew) error {
		s.update(func() {
			c := s.companies[p.ID]
			c.ID = p.ID
			s.companies[p.ID] = c
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.CompanyInfo) error {
		s.update(func() {
			c := s.companies[p.ID]
			c.ID = p.ID
			c.Name = p.Name
			c.Manager = p.Manager
			c.Colour = p.Colour.String()
			c.Passworded = p.Passworded
			c.StartYear = p.StartYear
			c.IsAI = p.IsAI
			c.QuartersBankrupt = p.QuartersBankrupt
			s.companies[p.ID] = c
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.CompanyUpdate) error {
		s.update(func() {
			c := s.companies[p.ID]
			c.ID = p.ID
			c.Name = p.Name
			c.Manager = p.Manager
			c.Colour = p.Colour.String()
			c.Passworded = p.Passworded
			c.QuartersBankrupt = p.QuartersBankrupt
			s.companies[p.ID] = c
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.CompanyRemove) error {
		s.update(func() { delete(s.companies, p.ID) })
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.CompanyEconomy) error {
		s.update(func() {
			c := s.companies[p.ID]
			c.ID = p.ID
			c.Money = p.Money
			c.Loan = p.Loan
			c.DeliveredCargo = p.DeliveredCargo
			c.Value = p.Quarters[0].CompanyValue
			c.Performance = p.Quarters[0].Performance
			s.companies[p.ID] = c
		})
		return nil
	})
	admin.On(r, func(_ *admin.Session, p protocol.CompanyStats) error {
		s.update(func() {
			c := s.companies[p.ID]
			c.ID = p.ID
			c.Vehicles = make(map[string]uint16, len(p.Vehicles))
			for v, n := range p.Vehicles {
				c.Vehicles[protocol.VehicleType(v).String()] = n
			}
			s.companies[p.ID] = c
		})
		return nil
	})
}

func (s *State) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.updatedAt = time.Now()
}

// ApplyWelcome starts a fresh mirror for the game w describes.
func (s *State) ApplyWelcome(w protocol.Welcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.server.ProtocolVersion
	s.resetLocked()
	s.online = true
	s.server = ServerInfo{
		Name:            w.ServerName,
		Version:         w.Version,
		Dedicated:       w.Dedicated,
		MapName:         w.MapName,
		Seed:            w.Seed,
		Landscape:       w.Landscape.String(),
		StartDate:       protocol.GameDate(w.StartDate),
		MapWidth:        w.MapWidth,
		MapHeight:       w.MapHeight,
		ProtocolVersion: version,
	}
	s.updatedAt = time.Now()
}

// Reset clears clients, companies and the date; server details are kept
// until the next Welcome.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.updatedAt = time.Now()
}

func (s *State) resetLocked() {
	s.date = time.Time{}
	s.clients = make(map[uint32]Client)
	s.companies = make(map[uint8]Company)
}

// Client returns one client.
func (s *State) Client(id uint32) (Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

// Clients returns the clients sorted by id.
func (s *State) Clients() []Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Company returns one company.
func (s *State) Company(id uint8) (Company, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	return c, ok
}

// Companies returns the companies sorted by id.
func (s *State) Companies() []Company {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CmdNames returns the DoCommand names reported so far.
func (s *State) CmdNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cmdNames...)
}

// Snapshot returns a read-only copy of the mirror.
func (s *State) Snapshot() Snapshot {
	clients := s.Clients()
	companies := s.Companies()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Online:      s.online,
		Server:      s.server,
		ClientCount: len(clients),
		Clients:     clients,
		Companies:   companies,
		LastPong:    s.lastPong,
		UpdatedAt:   s.updatedAt,
	}
	if !s.date.IsZero() {
		snap.Date = s.date.Format("2006-01-02")
	}
	return snap
}

// Snapshot is an immutable copy of the mirror.
type Snapshot struct {
	Online      bool       `json:"online"`
	Server      ServerInfo `json:"server"`
	Date        string     `json:"date,omitempty"`
	ClientCount int        `json:"client_count"`
	Clients     []Client   `json:"clients"`
	Companies   []Company  `json:"companies"`
	LastPong    time.Time  `json:"last_pong"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
