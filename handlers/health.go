package handlers

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skryldev/userstore/db"
)

// Pool is the part of *db.DB the health check reads.
type Pool interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

type healthResponse struct {
	Status  string                `json:"status"`
	Open    int                   `json:"open_connections"`
	InUse   int                   `json:"in_use"`
	Idle    int                   `json:"idle"`
	Queries db.QueryStatsSnapshot `json:"queries"`
}

// Health reports pool state and statement counters. It answers 503 when the
// database cannot be pinged.
func Health(pool Pool, stats *db.QueryStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := pool.Stats()
		resp := healthResponse{
			Status: "ok",
			Open:   st.OpenConnections,
			InUse:  st.InUse,
			Idle:   st.Idle,
		}
		if stats != nil {
			resp.Queries = stats.Snapshot()
		}
		code := http.StatusOK
		if err := pool.Ping(c.Request().Context()); err != nil {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}
