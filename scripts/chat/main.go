// Command chat is an interactive terminal client for the pairchat server.
//
// Lines typed on stdin are sent to the selected peer. Commands:
//
//	/users          list peers with presence and unseen counts
//	/to <id>        select the peer to talk to and show the history
//	/image <path>   send an image file to the selected peer
//	/quit           exit
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/gookit/color"

	"github.com/vovakirdan/pairchat/internal/proto"
)

type user struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Online   bool   `json:"online"`
	Unseen   int    `json:"unseen"`
}

type authResponse struct {
	Token string `json:"token"`
	User  user   `json:"user"`
}

type apiError struct {
	Error string `json:"error"`
}

type session struct {
	api *resty.Client
	me  user

	// names and peer are shared by the input and websocket loops.
	mu    sync.Mutex
	names map[int64]string
	peer  int64
}

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	name := flag.String("name", "", "full name; when set, sign up if login fails")
	flag.Parse()

	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		api:   resty.New().SetBaseURL(*server).SetTimeout(10 * time.Second),
		names: make(map[int64]string),
	}
	if err := s.authenticate(ctx, *email, *password, *name); err != nil {
		return err
	}

	conn, err := s.dial(ctx, *server)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	color.Green.Printf("Signed in as %s (#%d)\n", s.me.FullName, s.me.ID)
	fmt.Println("Type /users to list peers, /to <id> to pick one. Ctrl+C to exit.")
	if err := s.listUsers(ctx); err != nil {
		color.Red.Println(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		s.readLoop(ctx, conn)
	}()

	s.inputLoop(ctx, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func (s *session) authenticate(ctx context.Context, email, password, name string) error {
	var out authResponse
	var apiErr apiError
	resp, err := s.api.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/auth/login")
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized && name != "" {
		resp, err = s.api.R().
			SetContext(ctx).
			SetBody(map[string]string{"email": email, "password": password, "fullName": name}).
			SetResult(&out).
			SetError(&apiErr).
			Post("/api/auth/signup")
		if err != nil {
			return fmt.Errorf("signup: %w", err)
		}
	}
	if resp.IsError() {
		return fmt.Errorf("authenticate: %s (%d)", apiErr.Error, resp.StatusCode())
	}

	s.me = out.User
	s.api.SetAuthToken(out.Token)
	return nil
}

func (s *session) dial(ctx context.Context, server string) (*websocket.Conn, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.api.Token)
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(8 << 20)

	hello, err := json.Marshal(proto.HelloData{Protocol: proto.ProtocolVersion})
	if err != nil {
		return nil, err
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: hello}); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}
	return conn, nil
}

func (s *session) listUsers(ctx context.Context) error {
	var out struct {
		Users []user `json:"users"`
	}
	resp, err := s.api.R().SetContext(ctx).SetResult(&out).Get("/api/messages/users")
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("list users: status %d", resp.StatusCode())
	}

	s.mu.Lock()
	for _, u := range out.Users {
		s.names[u.ID] = u.FullName
	}
	s.mu.Unlock()

	for _, u := range out.Users {
		status := color.Gray.Sprint("offline")
		if u.Online {
			status = color.Green.Sprint("online")
		}
		unseen := ""
		if u.Unseen > 0 {
			unseen = color.Yellow.Sprintf(" (%d unseen)", u.Unseen)
		}
		fmt.Printf("  #%d %s [%s]%s\n", u.ID, u.FullName, status, unseen)
	}
	return nil
}

func (s *session) openConversation(ctx context.Context, peer int64) error {
	var out struct {
		Messages []proto.Message `json:"messages"`
	}
	resp, err := s.api.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/messages/" + strconv.FormatInt(peer, 10))
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("history: status %d", resp.StatusCode())
	}

	s.mu.Lock()
	s.peer = peer
	s.mu.Unlock()
	color.Cyan.Printf("--- conversation with %s ---\n", s.name(peer))
	for _, m := range out.Messages {
		s.printMessage(m)
	}
	return nil
}

func (s *session) name(id int64) string {
	if id == s.me.ID {
		return "you"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.names[id]; ok {
		return n
	}
	return "#" + strconv.FormatInt(id, 10)
}

func (s *session) currentPeer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *session) printMessage(m proto.Message) {
	ts := time.UnixMilli(m.CreatedAt).Format("15:04")
	body := m.Text
	if m.Image != "" {
		body = color.Magenta.Sprintf("[image %s]", m.Image)
	}
	who := color.Blue.Sprint(s.name(m.SenderID))
	if m.SenderID == s.me.ID {
		who = color.Green.Sprint("you")
	}
	fmt.Printf("%s %s: %s\n", color.Gray.Sprint(ts), who, body)
}

func (s *session) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var in struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) {
				color.Yellow.Printf("connection closed: %s\n", closeErr.Reason)
				return
			}
			color.Red.Printf("read error: %v\n", err)
			return
		}

		if in.Type == proto.OutboundTypeError && in.Error != nil {
			color.Red.Printf("error [%s]: %s\n", in.Error.Code, in.Error.Msg)
			continue
		}

		switch in.Event {
		case proto.EventNewMessage:
			var m proto.Message
			if err := json.Unmarshal(in.Data, &m); err != nil {
				continue
			}
			s.printMessage(m)
			if m.SenderID == s.currentPeer() {
				s.markSeen(ctx, m.ID)
			}
		case proto.EventOnlineUsers:
			var snapshot proto.EventOnlineUsersData
			if err := json.Unmarshal(in.Data, &snapshot); err != nil {
				continue
			}
			names := make([]string, 0, len(snapshot.Users))
			for _, id := range snapshot.Users {
				if id != s.me.ID {
					names = append(names, s.name(id))
				}
			}
			color.Gray.Printf("online: %s\n", strings.Join(names, ", "))
		case proto.EventSent:
			var m proto.Message
			if err := json.Unmarshal(in.Data, &m); err == nil {
				s.printMessage(m)
			}
		}
	}
}

func (s *session) markSeen(ctx context.Context, messageID int64) {
	_, err := s.api.R().SetContext(ctx).Put("/api/messages/mark/" + strconv.FormatInt(messageID, 10))
	if err != nil {
		color.Red.Printf("mark seen: %v\n", err)
	}
}

func (s *session) inputLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !s.handleLine(ctx, conn, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handleLine reports false when the user asked to quit.
func (s *session) handleLine(ctx context.Context, conn *websocket.Conn, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch {
	case line == "":
	case cmd == "/quit":
		return false
	case cmd == "/users":
		if err := s.listUsers(ctx); err != nil {
			color.Red.Println(err)
		}
	case cmd == "/to":
		peer, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			color.Red.Println("usage: /to <user id>")
			break
		}
		if err := s.openConversation(ctx, peer); err != nil {
			color.Red.Println(err)
		}
	case cmd == "/image":
		data, err := os.ReadFile(strings.TrimSpace(arg))
		if err != nil {
			color.Red.Println(err)
			break
		}
		dataURL := "data:" + mimetype.Detect(data).String() + ";base64," + base64.StdEncoding.EncodeToString(data)
		s.send(ctx, conn, proto.MsgData{Image: dataURL})
	default:
		s.send(ctx, conn, proto.MsgData{Text: line})
	}
	return true
}

func (s *session) send(ctx context.Context, conn *websocket.Conn, msg proto.MsgData) {
	msg.To = s.currentPeer()
	if msg.To == 0 {
		color.Yellow.Println("pick a peer first with /to <id>")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		color.Red.Printf("marshal msg: %v\n", err)
		return
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}); err != nil {
		color.Red.Printf("send error: %v\n", err)
	}
}
