// Package chatify provides a Go client for the chatify chat server.
package chatify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// User mirrors the server's public user representation.
type User struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Message mirrors the server's message representation. Pending marks a
// locally synthesized message awaiting server confirmation; it never
// crosses the wire.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Pending    bool      `json:"-"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatify error %d: %s", e.Status, e.Message)
}

// Client is a chatify API client. The session cookie set by Register
// or Login lives in the HTTP client's cookie jar and authenticates
// both REST calls and the realtime channel.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new chatify client.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// doRequest performs an HTTP request and decodes the response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Message}
	}

	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and starts a session.
func (c *Client) Register(ctx context.Context, fullName, email, password string) (*User, error) {
	var user User
	err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", RegisterRequest{
		FullName: fullName,
		Email:    email,
		Password: password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    email,
		Password: password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Check returns the identity of the current session.
func (c *Client) Check(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/api/auth/check", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile replaces the profile picture with the given data URL.
func (c *Client) UpdateProfile(ctx context.Context, profilePic string) (*User, error) {
	var user User
	err := c.doRequest(ctx, http.MethodPut, "/api/auth/update-profile", map[string]string{
		"profilePic": profilePic,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Contacts lists all other users.
func (c *Client) Contacts(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doRequest(ctx, http.MethodGet, "/api/message/contacts", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ChatPartners lists the users a conversation already exists with.
func (c *Client) ChatPartners(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doRequest(ctx, http.MethodGet, "/api/message/chats", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Conversation returns the full message history with a user, oldest
// first.
func (c *Client) Conversation(ctx context.Context, userID string) ([]Message, error) {
	var messages []Message
	if err := c.doRequest(ctx, http.MethodGet, "/api/message/"+userID, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// SendMessage persists a message to the given user and returns the
// server-assigned record. Most callers want ChatSession.SendMessage,
// which also maintains optimistic local state.
func (c *Client) SendMessage(ctx context.Context, receiverID, text, image string) (*Message, error) {
	var msg Message
	err := c.doRequest(ctx, http.MethodPost, "/api/message/send/"+receiverID, SendMessageRequest{
		Text:  text,
		Image: image,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
