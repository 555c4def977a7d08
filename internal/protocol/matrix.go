package protocol

import "fmt"

// frequencyMatrix lists the frequencies each update type accepts.
var frequencyMatrix = map[UpdateType][]UpdateFrequency{
	UpdateDate:           {FrequencyPoll, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually},
	UpdateClientInfo:     {FrequencyPoll, FrequencyAutomatic},
	UpdateCompanyInfo:    {FrequencyPoll, FrequencyAutomatic},
	UpdateCompanyEconomy: {FrequencyPoll, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually},
	UpdateCompanyStats:   {FrequencyPoll, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually},
	UpdateChat:           {FrequencyAutomatic},
	UpdateConsole:        {FrequencyAutomatic},
	UpdateCmdNames:       {FrequencyPoll},
	UpdateCmdLogging:     {FrequencyAutomatic},
	UpdateGameScript:     {FrequencyAutomatic},
}

func init() {
	for u := UpdateType(0); u < UpdateEnd; u++ {
		if len(frequencyMatrix[u]) == 0 {
			panic(fmt.Sprintf("protocol: update type %s has no allowed frequencies", u))
		}
	}
}

// AllowedFrequencies returns a copy of the frequencies u accepts.
func AllowedFrequencies(u UpdateType) []UpdateFrequency {
	allowed := frequencyMatrix[u]
	out := make([]UpdateFrequency, len(allowed))
	copy(out, allowed)
	return out
}

// Allowed reports whether u accepts f.
func Allowed(u UpdateType, f UpdateFrequency) bool {
	for _, a := range frequencyMatrix[u] {
		if a == f {
			return true
		}
	}
	return false
}

// CheckFrequency returns ErrInvalidFrequency when u does not accept f.
func CheckFrequency(u UpdateType, f UpdateFrequency) error {
	if !Allowed(u, f) {
		return fmt.Errorf("%w: %s does not accept %s", ErrInvalidFrequency, u, f)
	}
	return nil
}
