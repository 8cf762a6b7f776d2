package bot

import (
	"cmp"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tazhate/fiscalbot/internal/dashboard"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/report"
	"github.com/tazhate/fiscalbot/internal/service"
)

// maxListed caps obligation lists in a single message.
const maxListed = 15

var printer = message.NewPrinter(language.BrazilianPortuguese)

func obligationTitle(o domain.ObligationWithDetails) string {
	title := "Obrigação"
	if o.Tax != nil {
		title = o.Tax.Name
	}
	if o.Client != nil {
		title += " - " + o.Client.Name
	}
	return title
}

func formatObligation(o domain.ObligationWithDetails, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("• <b>")
	sb.WriteString(html.EscapeString(obligationTitle(o)))
	sb.WriteString("</b>\n   📅 ")
	sb.WriteString(dashboard.RelativeDescription(o.CalculatedDueDate, now))
	if !domain.SameDay(o.DueDate, o.CalculatedDueDate) {
		sb.WriteString(" (" + o.CalculatedDueDate.Format("02/01") + ")")
	}
	if o.AssignedTo != "" {
		sb.WriteString(" · 👤 " + html.EscapeString(o.AssignedTo))
	}
	if o.Priority == domain.PriorityHigh {
		sb.WriteString(" · 🔴")
	}
	return sb.String()
}

func formatList(title string, list []domain.ObligationWithDetails, now time.Time, empty string) string {
	if len(list) == 0 {
		return title + "\n\n" + empty
	}

	lines := make([]string, 0, min(len(list), maxListed)+1)
	for i, o := range list {
		if i == maxListed {
			lines = append(lines, printer.Sprintf("… e mais %d", len(list)-maxListed))
			break
		}
		lines = append(lines, formatObligation(o, now))
	}
	return printer.Sprintf("%s (%d)\n\n", title, len(list)) + strings.Join(lines, "\n")
}

func formatDigest(snap *service.Snapshot, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("☀️ <b>Bom dia!</b>\n\n")

	if len(snap.Critical) == 0 && len(snap.ThisWeek) == 0 {
		sb.WriteString("Nenhuma obrigação pendente para os próximos 7 dias. 🎉")
		return sb.String()
	}

	if len(snap.Critical) > 0 {
		sb.WriteString(formatList("🚨 <b>Vencidas e de hoje</b>", snap.Critical, now, ""))
		sb.WriteString("\n\n")
	}

	// Today's obligations are already listed as critical.
	upcoming := make([]domain.ObligationWithDetails, 0, len(snap.ThisWeek))
	for _, o := range snap.ThisWeek {
		if !dashboard.IsToday(o.DueDate, now) {
			upcoming = append(upcoming, o)
		}
	}
	sb.WriteString(formatList("🗓 <b>Próximos 7 dias</b>", upcoming, now, "Nada mais nesta semana."))
	return sb.String()
}

func formatDashboard(snap *service.Snapshot) string {
	s := snap.Stats
	return printer.Sprintf(`📊 <b>Painel</b>

👥 Clientes: %d (%d ativos)
📋 Obrigações: %d
⏳ Pendentes: %d
🚨 Atrasadas: %d
📌 Vencem hoje: %d
🗓 Nesta semana: %d
✅ Concluídas no mês: %d`,
		s.TotalClients, s.ActiveClients,
		s.TotalObligations,
		s.PendingObligations,
		s.OverdueObligations,
		s.DueTodayCount,
		s.DueThisWeekCount,
		s.CompletedThisMonth,
	)
}

func formatProductivity(r *service.ProductivityReport) string {
	m := r.Metrics
	var sb strings.Builder
	sb.WriteString("📈 <b>Produtividade</b>\n\n")
	sb.WriteString(printer.Sprintf("Taxa de conclusão: %.1f%%\n", m.CompletionRate))
	sb.WriteString(printer.Sprintf("No prazo: %.1f%%\n", m.OnTimeRate))
	sb.WriteString(printer.Sprintf("Tempo médio: %.1f dias\n", m.AverageCompletionTime))
	if r.PeriodOnTimeRate != nil {
		sb.WriteString(printer.Sprintf("No prazo (período): %.1f%%\n", *r.PeriodOnTimeRate))
	}

	if len(r.TopPending) > 0 {
		sb.WriteString("\n<b>Pendências por responsável</b>\n")
		for _, a := range r.TopPending {
			sb.WriteString(printer.Sprintf("• %s: %d\n", html.EscapeString(a.Assignee), a.Count))
		}
	}

	if len(m.ByAssignee) > 0 {
		sb.WriteString("\n<b>Concluídas por responsável</b>\n")
		for _, name := range sortedAssignees(m.ByAssignee) {
			a := m.ByAssignee[name]
			sb.WriteString(printer.Sprintf("• %s: %d (%d no prazo, %d atrasadas)\n", html.EscapeString(name), a.Completed, a.OnTime, a.Late))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sortedAssignees(m map[string]report.AssigneeMetrics) []string {
	names := slices.Collect(maps.Keys(m))
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(m[b].Completed, m[a].Completed); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

func formatGeneration(result service.GenerationResult) string {
	var sb strings.Builder
	sb.WriteString("🔁 <b>Geração de recorrências</b>\n\n")
	sb.WriteString(printer.Sprintf("Criadas: %d\n", len(result.Created)))
	sb.WriteString(printer.Sprintf("Já em dia: %d\n", result.UpToDate))
	if result.Duplicates > 0 {
		sb.WriteString(printer.Sprintf("Ignoradas (duplicadas): %d\n", result.Duplicates))
	}
	if len(result.Failures) > 0 {
		sb.WriteString(printer.Sprintf("\n⚠️ <b>Falhas: %d</b>\n", len(result.Failures)))
		for _, f := range result.Failures {
			sb.WriteString(fmt.Sprintf("• %s: %s\n", html.EscapeString(f.TaxName), html.EscapeString(f.Error)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
