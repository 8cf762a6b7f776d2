package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const serverName = "fiscalbot"

// NewServer registers the fiscalbot tools backed by client.
func NewServer(client *Client, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version}, nil)
	t := &tools{client: client, now: time.Now}

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_dashboard",
		Description: "Resumo do painel: contagens, obrigações críticas, semana e produtividade",
	}, t.dashboard)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_critical",
		Description: "Obrigações pendentes vencidas ou que vencem hoje",
	}, t.critical)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_overdue",
		Description: "Obrigações pendentes vencidas",
	}, t.overdue)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_productivity",
		Description: "Métricas de produtividade, opcionalmente com a taxa de pontualidade de um período",
	}, t.productivity)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_run_generation",
		Description: "Executa a geração automática das próximas obrigações recorrentes",
	}, t.runGeneration)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_preview_recurrence",
		Description: "Lista as próximas datas de vencimento de uma regra de recorrência",
	}, t.previewRecurrence)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "fiscal_complete_obligation",
		Description: "Marca uma obrigação como concluída",
	}, t.completeObligation)

	return server
}

// Run serves the tools over stdio until ctx is done or the client hangs up.
func Run(ctx context.Context, cfg Config, version string, logger *zap.Logger) error {
	server := NewServer(NewClient(cfg), version)
	logger.Info("mcp server starting", zap.String("api_url", cfg.APIURL))
	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}
