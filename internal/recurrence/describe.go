package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tazhate/fiscalbot/internal/domain"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// defaultQuarterMonths are shown for quarterly rules without explicit months.
var defaultQuarterMonths = []int{1, 4, 7, 10}

// MonthName returns the Portuguese name of month (1-12), or "" when out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// Description renders rule as a short Portuguese sentence.
func Description(rule domain.RecurrenceRule) string {
	switch rule.Type {
	case domain.RecurrenceMonthly:
		if rule.DayOfMonth > 0 {
			return fmt.Sprintf("Mensal - Todo dia %d", rule.DayOfMonth)
		}
		return "Mensal"

	case domain.RecurrenceQuarterly:
		if rule.DayOfMonth > 0 {
			months := rule.Months
			if len(months) == 0 {
				months = defaultQuarterMonths
			}
			return fmt.Sprintf("Trimestral - Dia %d dos meses %s", rule.DayOfMonth, joinInts(months))
		}
		return "Trimestral"

	case domain.RecurrenceCustom:
		switch {
		case rule.Interval > 0:
			return fmt.Sprintf("A cada %d dias", rule.Interval)
		case len(rule.CustomDays) > 0:
			return fmt.Sprintf("Dias %s do mês", joinInts(rule.CustomDays))
		case len(rule.Months) > 0:
			names := make([]string, len(rule.Months))
			for i, m := range rule.Months {
				names[i] = MonthName(m)
			}
			desc := "Meses: " + strings.Join(names, ", ")
			if rule.DayOfMonth > 0 {
				desc += fmt.Sprintf(" - dia %d", rule.DayOfMonth)
			}
			return desc
		}
		return "Recorrência customizada"
	}

	return "Sem recorrência"
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// ValidationResult is advisory: callers may persist a rule that fails it.
// Warnings flag values the engine will ignore or clamp without making the
// rule invalid.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks rule for obvious mistakes. A rule is invalid only when the
// type is missing, a monthly or quarterly day is outside 1-31, or a custom
// rule sets none of interval, days and months. An empty but present days or
// months list counts as set.
func Validate(rule domain.RecurrenceRule) ValidationResult {
	res := ValidationResult{Valid: true, Warnings: warnings(rule)}

	switch {
	case rule.Type == "":
		res.Valid, res.Error = false, "Tipo de recorrência é obrigatório"
	case (rule.Type == domain.RecurrenceMonthly || rule.Type == domain.RecurrenceQuarterly) &&
		(rule.DayOfMonth < 0 || rule.DayOfMonth > 31):
		res.Valid, res.Error = false, "Dia do mês deve estar entre 1 e 31"
	case rule.Type == domain.RecurrenceCustom && rule.Interval == 0 && rule.CustomDays == nil && rule.Months == nil:
		res.Valid, res.Error = false, "Recorrência customizada requer intervalo, dias ou meses específicos"
	}
	return res
}

func warnings(rule domain.RecurrenceRule) []string {
	var out []string
	switch rule.Type {
	case "", domain.RecurrenceNone, domain.RecurrenceMonthly, domain.RecurrenceQuarterly:
	case domain.RecurrenceCustom:
		if rule.DayOfMonth < 0 || rule.DayOfMonth > 31 {
			out = append(out, "Dia do mês deve estar entre 1 e 31")
		}
		if rule.Interval == 0 && len(rule.CustomDays) == 0 && len(rule.Months) == 0 &&
			(rule.CustomDays != nil || rule.Months != nil) {
			out = append(out, "Dias e meses informados estão vazios")
		}
	default:
		out = append(out, fmt.Sprintf("Tipo de recorrência desconhecido: %s", rule.Type))
	}
	if rule.Interval < 0 {
		out = append(out, "Intervalo negativo é ignorado")
	}
	if slices.ContainsFunc(rule.Months, func(m int) bool { return m < 1 || m > 12 }) {
		out = append(out, "Meses devem estar entre 1 e 12")
	}
	if slices.ContainsFunc(rule.CustomDays, func(d int) bool { return d < 1 || d > 31 }) {
		out = append(out, "Dias devem estar entre 1 e 31")
	}
	return out
}
