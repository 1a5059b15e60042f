// Command assistedscrape runs the page-understanding and extraction engine: an HTTP
// server exposing the operator control channel over WebSocket, plus a CSV batch-run
// endpoint for unattended scrape sweeps.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/assistedscrape/engine/internal/batch"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/control"
	"github.com/assistedscrape/engine/internal/logging"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/ruleset"
	"github.com/assistedscrape/engine/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

func main() {
	logDir := os.Getenv("ENGINE_LOG_DIR")
	if logDir != "" {
		logging.SetLogDir(logDir)
	}
	logger := logging.GetLogger()
	defer logger.Close()

	cfgPath := os.Getenv("ENGINE_CONFIG_PATH")
	cfg := config.GetDefaultConfig()
	if cfgPath != "" {
		loaded, err := config.LoadConfig(cfgPath)
		if err != nil {
			logger.Warn("falling back to default config", map[string]any{"path": cfgPath, "error": err.Error()})
		} else {
			cfg = loaded
		}
	}

	store, err := ruleset.Open(cfg.StoragePath + "/rulesets.db")
	if err != nil {
		logger.Fatal("failed to open rule set store", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	manager := session.NewManager(*cfg, store)
	hub := control.New(manager)

	router := gin.Default()
	router.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})
	router.GET("/rulesets", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.List())
	})
	router.POST("/batch", func(c *gin.Context) {
		handleBatchUpload(c, manager, store)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "host": hostStats()})
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	logger.Info("starting engine", map[string]any{"port": port})
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("server exited", map[string]any{"error": err.Error()})
	}
}

// hostStats reports a cheap snapshot of host resource pressure for /healthz, so an
// operator watching several running engines can tell which one is under load before
// it starts failing detection runs.
func hostStats() gin.H {
	stats := gin.H{}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats["cpuPercent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memPercent"] = vm.UsedPercent
	}
	return stats
}

// handleBatchUpload parses the uploaded CSV sheet and runs every row's scrape using
// whatever rule set is already persisted for that row's source URL. A row with no
// matching rule set is skipped and logged rather than failing the whole batch.
func handleBatchUpload(c *gin.Context, manager *session.Manager, store *ruleset.Store) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	rows, err := batch.ParseCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runner := batch.NewRunner(func(ctx context.Context, row batch.Row) ([]models.ProductRecord, error) {
		rs, ok := store.FindByURL(row.SourceURL)
		if !ok {
			return nil, fmt.Errorf("no rule set configured for %s", row.SourceURL)
		}

		sess, err := manager.CreateSession(ctx, "")
		if err != nil {
			return nil, err
		}
		defer manager.DestroySession(sess.ID)

		targetURL := row.SourceURL
		if row.NextURL != "" {
			targetURL = row.NextURL
		}
		if err := sess.Navigate(ctx, targetURL); err != nil {
			return nil, err
		}
		sess.SetRuleSet(rs)
		return sess.ExtractContainer(ctx, targetURL)
	})

	records := runner.RunAll(c.Request.Context(), rows)
	c.JSON(http.StatusOK, gin.H{"rows": len(rows), "records": records})
}
