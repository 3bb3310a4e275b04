package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"pitfan"

	"github.com/gin-gonic/gin"
)

// valueAbsent is the reserved "not present" sentinel for the integer
// `value` query parameter, distinct from any valid value.
const valueAbsent = math.MinInt

// snapshotBody renders the integration wire format. The external bridge
// parses this byte-for-byte; field order, spacing and %.2f formatting are
// part of the contract.
func snapshotBody(s pitfan.Snapshot) string {
	return fmt.Sprintf(
		`{"targetHeatingCoolingState": %d,"targetTemperature": %.2f,"currentHeatingCoolingState": %d,"currentTemperature": %.2f}`,
		int(s.TargetMode), s.TargetTemperature, int(s.CurrentMode), s.CurrentTemperature,
	)
}

// writeSnapshot emits the snapshot with the contractual headers. Every
// integration request, read or write, answers with the full current state.
func (h *Handler) writeSnapshot(c *gin.Context, s pitfan.Snapshot) {
	c.Header("Connection", "close")
	c.Data(http.StatusOK, "application/json", []byte(snapshotBody(s)))
}

// queryValue extracts the integer `value` parameter, returning the absence
// sentinel for missing or malformed input.
func queryValue(c *gin.Context) int {
	raw, ok := c.GetQuery("value")
	if !ok {
		return valueAbsent
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return valueAbsent
	}
	return v
}

// refuse rejects a request at the transport level: the connection is closed
// without writing a body, which the bridge reads as "not handled". Writers
// that cannot be hijacked (tests, HTTP/2) get a bare status instead.
func (h *Handler) refuse(c *gin.Context) {
	c.Abort()
	// gin's Hijack panics when the underlying writer is not a Hijacker
	// (httptest recorders, HTTP/2).
	defer func() {
		if recover() != nil {
			c.Status(http.StatusBadRequest)
		}
	}()
	if conn, _, err := c.Writer.Hijack(); err == nil {
		_ = conn.Close()
		return
	}
	c.Status(http.StatusBadRequest)
}

// @Summary      Thermostat snapshot
// @Description  Integration wire format; returns the current state unmodified.
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  pitfan.Snapshot
// @Router       /status [get]
func (h *Handler) status(c *gin.Context) {
	h.writeSnapshot(c, h.services.Thermostat.Snapshot())
}

// @Summary      Set target temperature
// @Tags         thermostat
// @Produce      json
// @Param        value  query  int  true  "target temperature in °C"
// @Success      200  {object}  pitfan.Snapshot
// @Router       /targetTemperature [get]
func (h *Handler) setTargetTemperature(c *gin.Context) {
	v := queryValue(c)
	if v == valueAbsent {
		h.refuse(c)
		return
	}
	snap := h.services.Thermostat.SetTargetTemperature(c.Request.Context(), float64(v))
	h.writeSnapshot(c, snap)
}

// @Summary      Set target heating/cooling mode
// @Description  Mode codes are fixed by the integration: Off=0 Heat=1 Cool=2 Auto=3. Values are stored as-is, without range checking.
// @Tags         thermostat
// @Produce      json
// @Param        value  query  int  true  "mode code"
// @Success      200  {object}  pitfan.Snapshot
// @Router       /targetHeatingCoolingState [get]
func (h *Handler) setTargetMode(c *gin.Context) {
	v := queryValue(c)
	if v == valueAbsent {
		h.refuse(c)
		return
	}
	snap := h.services.Thermostat.SetTargetMode(c.Request.Context(), pitfan.CoolingMode(v))
	h.writeSnapshot(c, snap)
}

// @Summary      Override current temperature
// @Description  Force-sets the sensor value until the next control period. The route spelling is preserved for deployed callers.
// @Tags         thermostat
// @Produce      json
// @Param        value  query  int  true  "temperature in °C"
// @Success      200  {object}  pitfan.Snapshot
// @Router       /currentTempreture [get]
func (h *Handler) overrideCurrentTemperature(c *gin.Context) {
	v := queryValue(c)
	if v == valueAbsent {
		h.refuse(c)
		return
	}
	snap := h.services.Thermostat.OverrideCurrentTemperature(c.Request.Context(), float64(v))
	h.writeSnapshot(c, snap)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Telemetry snapshot
// @Description  Integration snapshot plus fan duty and RPM.
// @Tags         thermostat
// @Produce      json
// @Success      200  {object}  pitfan.Telemetry
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/telemetry [get]
// @Security     BearerAuth
func (h *Handler) getTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Thermostat.Telemetry())
}
