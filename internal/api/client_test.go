package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T, setup func(r *gin.Engine)) (*httptest.Server, *Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	setup(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, New(server.URL, "test-token", 5*time.Second)
}

func TestFeedPassesCursorAndLimit(t *testing.T) {
	var gotLastID, gotLimit, gotQuery string

	_, client := newTestServer(t, func(r *gin.Engine) {
		r.GET("/search/feed", func(c *gin.Context) {
			gotLastID = c.Query("last_id")
			gotLimit = c.Query("limit")
			gotQuery = c.Query("q")
			c.JSON(http.StatusOK, gin.H{
				"items": []gin.H{
					{"type": "service", "id": 1, "title": "Canalização"},
					{"type": "company", "id": 1, "name": "Obras Lda"},
					{"type": "advert", "id": 9},
				},
				"has_more":       true,
				"next_page_info": gin.H{"last_id": 42},
			})
		})
	})

	cursor := 7
	page, err := client.Feed(context.Background(), "", &cursor, 10)
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}

	if gotLastID != "7" || gotLimit != "10" {
		t.Fatalf("query = last_id=%s limit=%s, want 7/10", gotLastID, gotLimit)
	}
	if gotQuery != "" {
		t.Fatalf("unexpected q param %q", gotQuery)
	}
	if len(page.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2 (unknown type skipped)", len(page.Items))
	}
	if !page.HasMore {
		t.Fatal("HasMore = false, want true")
	}
	if page.LastID == nil || *page.LastID != 42 {
		t.Fatalf("LastID = %v, want 42", page.LastID)
	}
}

func TestFeedSearchVariant(t *testing.T) {
	var gotQuery string

	_, client := newTestServer(t, func(r *gin.Engine) {
		r.GET("/search/feed", func(c *gin.Context) {
			gotQuery = c.Query("q")
			c.JSON(http.StatusOK, gin.H{"items": []gin.H{}, "has_more": false})
		})
	})

	page, err := client.Feed(context.Background(), "canalizador", nil, 10)
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if gotQuery != "canalizador" {
		t.Fatalf("q = %q", gotQuery)
	}
	if page.HasMore {
		t.Fatal("HasMore = true, want false")
	}
	if page.LastID != nil {
		t.Fatalf("LastID = %v, want nil", page.LastID)
	}
}

func TestSendMessageCarriesReply(t *testing.T) {
	var gotBody struct {
		Text      string `json:"text"`
		ReplyToID *int   `json:"reply_to_id"`
	}

	_, client := newTestServer(t, func(r *gin.Engine) {
		r.POST("/conversations/3/messages", func(c *gin.Context) {
			if err := c.ShouldBindJSON(&gotBody); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"id": 101})
		})
	})

	replyTo := 7
	sent, err := client.SendMessage(context.Background(), 3, "Olá", &replyTo)
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	if sent.ID != 101 {
		t.Fatalf("sent.ID = %d, want 101", sent.ID)
	}
	if gotBody.Text != "Olá" {
		t.Fatalf("text = %q", gotBody.Text)
	}
	if gotBody.ReplyToID == nil || *gotBody.ReplyToID != 7 {
		t.Fatalf("reply_to_id = %v, want 7", gotBody.ReplyToID)
	}
}

func TestSendFileMultipart(t *testing.T) {
	var gotFilename string

	_, client := newTestServer(t, func(r *gin.Engine) {
		r.POST("/conversations/5/messages/file", func(c *gin.Context) {
			file, err := c.FormFile("file")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
				return
			}
			gotFilename = file.Filename
			c.JSON(http.StatusOK, gin.H{"id": 55, "url": "/uploads/foto.jpg"})
		})
	})

	sent, err := client.SendFile(context.Background(), 5, "foto.jpg", strings.NewReader("fake-jpeg"), nil)
	if err != nil {
		t.Fatalf("SendFile() error: %v", err)
	}

	if gotFilename != "foto.jpg" {
		t.Fatalf("filename = %q", gotFilename)
	}
	if sent.URL != "/uploads/foto.jpg" {
		t.Fatalf("URL = %q", sent.URL)
	}
}

func TestToggleLikeDiscriminant(t *testing.T) {
	calls := 0
	_, client := newTestServer(t, func(r *gin.Engine) {
		r.POST("/likeable/service/9/toggle", func(c *gin.Context) {
			calls++
			if calls%2 == 1 {
				c.JSON(http.StatusOK, gin.H{"id": 9, "title": "Canalização", "likes_count": 4})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "like removed"})
		})
	})

	liked, err := client.ToggleLike(context.Background(), "service", 9)
	if err != nil {
		t.Fatalf("ToggleLike() error: %v", err)
	}
	if !liked.Liked() {
		t.Fatal("entity-shaped response should mean liked")
	}

	unliked, err := client.ToggleLike(context.Background(), "service", 9)
	if err != nil {
		t.Fatalf("ToggleLike() error: %v", err)
	}
	if unliked.Liked() {
		t.Fatal("message-shaped response should mean unliked")
	}
}

func TestErrorEnvelopeParsing(t *testing.T) {
	_, client := newTestServer(t, func(r *gin.Engine) {
		r.GET("/conversations", func(c *gin.Context) {
			c.JSON(http.StatusForbidden, gin.H{"detail": "not allowed"})
		})
	})

	_, err := client.Conversations(context.Background())

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "not allowed" {
		t.Fatalf("Detail = %q", apiErr.Detail)
	}
}

func TestLoginInstallsToken(t *testing.T) {
	var gotAuth string

	server, client := newTestServer(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			if c.PostForm("username") != "ana" || c.PostForm("password") != "s3cret" {
				c.JSON(http.StatusUnauthorized, gin.H{"detail": "bad credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"access_token": "fresh-jwt", "token_type": "bearer"})
		})
		r.GET("/conversations", func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			c.JSON(http.StatusOK, []gin.H{})
		})
	})
	_ = server

	token, err := client.Login(context.Background(), "ana", "s3cret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if token != "fresh-jwt" {
		t.Fatalf("token = %q", token)
	}

	if _, err := client.Conversations(context.Background()); err != nil {
		t.Fatalf("Conversations() error: %v", err)
	}
	if gotAuth != "Bearer fresh-jwt" {
		t.Fatalf("Authorization = %q, want new token", gotAuth)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, client := newTestServer(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "bad credentials"})
		})
	})

	_, err := client.Login(context.Background(), "ana", "wrong")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d", apiErr.StatusCode)
	}
}
