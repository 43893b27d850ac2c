package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bizlinkmz/bizlink-go/pkg/config"
)

func TestRunLikeTogglesAndPrintsState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/likeable/:type/:id/likes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"is_liked": false, "likes_count": 3})
	})
	router.POST("/likeable/:type/:id/toggle", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"likes_count": 4})
	})
	server := httptest.NewServer(router)
	defer server.Close()

	cfg := &config.Config{APIBaseURL: server.URL, Token: "tok", HTTPTimeout: statusProbeTimeout}

	var out bytes.Buffer
	if err := runLike(cfg, &out, []string{"service", "7"}); err != nil {
		t.Fatalf("runLike returned error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Gostou") || !strings.Contains(text, "service/7") || !strings.Contains(text, "4") {
		t.Fatalf("unexpected output: %q", text)
	}
}

func TestRunLikeRejectsBadArgs(t *testing.T) {
	cfg := &config.Config{APIBaseURL: "https://api.example.com"}

	if err := runLike(cfg, &bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected usage error for missing args")
	}
	if err := runLike(cfg, &bytes.Buffer{}, []string{"service", "abc"}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
