package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/game"
)

// RenderStatus prints the session state and server details.
func RenderStatus(w io.Writer, snap game.Snapshot, state admin.State) {
	tw := tablewriter.NewWriter(w)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	online := "no"
	if snap.Online {
		online = "yes"
	}
	date := snap.Date
	if date == "" {
		date = "-"
	}

	tw.AppendBulk([][]string{
		{"Session", state.String()},
		{"Online", online},
		{"Server", snap.Server.Name},
		{"Version", snap.Server.Version},
		{"Map", fmt.Sprintf("%s (%dx%d, %s)", snap.Server.MapName, snap.Server.MapWidth, snap.Server.MapHeight, snap.Server.Landscape)},
		{"Date", date},
		{"Clients", strconv.Itoa(snap.ClientCount)},
		{"Companies", strconv.Itoa(len(snap.Companies))},
	})
	tw.Render()
}

// RenderClients prints clients as a table.
func RenderClients(w io.Writer, clients []game.Client) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "Name", "IP", "Company", "Joined"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, c := range clients {
		company := strconv.Itoa(int(c.CompanyID))
		if c.CompanyID == game.CompanySpectator {
			company = "spectator"
		}
		joined := "-"
		if !c.Joined.IsZero() {
			joined = c.Joined.Format("2006-01-02")
		}
		tw.Append([]string{strconv.FormatUint(uint64(c.ID), 10), c.Name, c.IP, company, joined})
	}
	tw.Render()
}

// RenderCompanies prints companies as a table.
func RenderCompanies(w io.Writer, companies []game.Company) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "Name", "Manager", "Founded", "Money", "Loan", "Value", "Vehicles", "Flags"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, c := range companies {
		flags := ""
		if c.Passworded {
			flags += "P"
		}
		if c.IsAI {
			flags += "A"
		}
		if c.QuartersBankrupt > 0 {
			flags += fmt.Sprintf("B%d", c.QuartersBankrupt)
		}

		tw.Append([]string{
			strconv.Itoa(int(c.ID)),
			c.Name,
			c.Manager,
			strconv.FormatUint(uint64(c.StartYear), 10),
			strconv.FormatUint(c.Money, 10),
			strconv.FormatUint(c.Loan, 10),
			strconv.FormatUint(c.Value, 10),
			vehicleSummary(c.Vehicles),
			flags,
		})
	}
	tw.Render()
}

// RenderRcon prints rcon output lines.
func RenderRcon(w io.Writer, lines []game.RconLine) {
	for _, l := range lines {
		fmt.Fprintln(w, l.Text)
	}
}

func vehicleSummary(v map[string]uint16) string {
	if len(v) == 0 {
		return "-"
	}
	kinds := make([]string, 0, len(v))
	for k := range v {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	out := ""
	for _, k := range kinds {
		if v[k] == 0 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s:%d", k, v[k])
	}
	if out == "" {
		return "-"
	}
	return out
}
