package middleware

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"inventory-service/internal/config"

	"go.uber.org/zap"
)

// ServerInfo muestra el banner del servidor al iniciar
func ServerInfo(cfg *config.Config, logger *zap.Logger) {
	hostname, _ := os.Hostname()
	startTime := time.Now().Format("2006-01-02 15:04:05")
	port := cfg.Server.Port

	cacheMode := "L1 (memoria)"
	if cfg.Redis.URL != "" {
		cacheMode = "L1 (memoria) + L2 (Redis)"
	}
	events := "WebSocket"
	if cfg.Kafka.Enabled() {
		events = "WebSocket + Kafka (" + cfg.Kafka.Topic + ")"
	}
	auth := "JWT"
	if cfg.JWT.Disabled {
		auth = yellowColor + "DESACTIVADA" + resetColor
	}

	fmt.Println("")
	fmt.Println("🚀 " + boldColor + "Inventory Service API" + resetColor)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("📅 Started at: " + startTime)
	fmt.Println("🌐 Server URL: " + cyanColor + "http://localhost:" + port + resetColor)
	fmt.Println("💻 Hostname: " + hostname)
	fmt.Println("🔧 Go Version: " + runtime.Version())
	fmt.Println("")
	fmt.Println("📊 " + boldColor + "Endpoints:" + resetColor)
	fmt.Println("   POST " + greenColor + "/api/v1/transactions" + resetColor + "        - Registrar movimiento")
	fmt.Println("   GET  " + greenColor + "/api/v1/items/:id/history" + resetColor + "   - Historial por location")
	fmt.Println("   GET  " + greenColor + "/api/v1/items/:id/summary" + resetColor + "   - Distribución actual")
	fmt.Println("   GET  " + greenColor + "/api/v1/events/ws" + resetColor + "           - Feed de cambios")
	fmt.Println("   GET  " + greenColor + "/health" + resetColor + "                     - Health Check")
	fmt.Println("")
	fmt.Println("⚙️  " + boldColor + "Environment:" + resetColor)
	fmt.Println("   🗄️  Database: " + cfg.Database.Driver)
	fmt.Println("   🗃️  Cache: " + cacheMode)
	fmt.Println("   📡 Events: " + events)
	fmt.Println("   🔐 Auth: " + auth)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("")

	logger.Info("Server started successfully",
		zap.String("port", port),
		zap.String("hostname", hostname),
		zap.String("go_version", runtime.Version()),
		zap.Int("cpu_cores", runtime.NumCPU()),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("kafka", cfg.Kafka.Enabled()),
	)
}
