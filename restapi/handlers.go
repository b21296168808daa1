package restapi

import (
	"bufio"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/streamgate-io/streamgate/filters"
	"github.com/streamgate-io/streamgate/records"
)

type postRecordsResponse struct {
	Received int               `json:"received"`
	Accepted int               `json:"accepted"`
	States   map[string]int    `json:"states"`
	Records  []json.RawMessage `json:"records"`
}

// PostRecords reads newline-delimited JSON records from the request body,
// runs them through the pipeline and returns the survivors with drop
// counts. Rejected-but-mutated records are not returned.
func (g *Gate) PostRecords(c *gin.Context) {
	var recs []*records.Record
	scanner := bufio.NewScanner(c.Request.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// scanner reuses its buffer, each record needs its own copy
		rec, err := records.FromJSON(append([]byte{}, line...))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta := &filters.Params{Source: "restapi", UserAgent: c.Request.UserAgent()}
	states, kept := g.pipeline.Run(recs, meta)

	resp := postRecordsResponse{
		Received: len(recs),
		Accepted: len(kept),
		States:   states,
		Records:  make([]json.RawMessage, 0, len(kept)),
	}
	for _, rec := range kept {
		resp.Records = append(resp.Records, json.RawMessage(rec.Bytes()))
	}
	body, err := json.Marshal(resp)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// GetTopKeys returns the tracked top keys sorted by count descending.
func (g *Gate) GetTopKeys(c *gin.Context) {
	if g.topKeys == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "top key tracking is not configured"})
		return
	}
	body, err := json.Marshal(g.topKeys.Snapshot())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// GetTopKeysEncoded returns the tracker's compact binary encoding.
func (g *Gate) GetTopKeysEncoded(c *gin.Context) {
	if g.topKeys == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "top key tracking is not configured"})
		return
	}
	data, err := g.topKeys.Encoded()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

type statsResponse struct {
	Stages  []string `json:"stages"`
	TopKeys int      `json:"top_keys_tracked,omitempty"`
}

// GetStats reports pipeline composition.
func (g *Gate) GetStats(c *gin.Context) {
	resp := statsResponse{Stages: g.pipeline.Names()}
	if g.topKeys != nil {
		resp.TopKeys = len(g.topKeys.Snapshot())
	}
	c.JSON(http.StatusOK, resp)
}
