package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
)

type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (d dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d(ctx, network, address)
}

type fakeSMTPOptions struct {
	advertiseAuth bool
	rejectAuth    bool
	rejectRcpt    bool
}

type smtpTranscript struct {
	mu       sync.Mutex
	mailFrom string
	rcpts    []string
	data     string
	authSeen bool
}

func (s *smtpTranscript) snapshot() smtpTranscript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return smtpTranscript{mailFrom: s.mailFrom, rcpts: append([]string(nil), s.rcpts...), data: s.data, authSeen: s.authSeen}
}

// startFakeSMTPServer runs a scripted SMTP conversation over an in-memory pipe.
func startFakeSMTPServer(t *testing.T, opts fakeSMTPOptions) (net.Conn, *smtpTranscript, func()) {
	t.Helper()

	server, client := net.Pipe()
	transcript := &smtpTranscript{}
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer server.Close() //nolint:errcheck
		if err := runFakeSMTPConversation(server, opts, transcript); err != nil && !errors.Is(err, io.EOF) &&
			!errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("fake smtp server: %v", err)
		}
	}()

	return client, transcript, wg.Wait
}

func runFakeSMTPConversation(conn net.Conn, opts fakeSMTPOptions, transcript *smtpTranscript) error {
	writer := bufio.NewWriter(conn)
	reader := bufio.NewReader(conn)

	writeLine := func(format string, args ...any) error {
		if _, err := fmt.Fprintf(writer, format+"\r\n", args...); err != nil {
			return err
		}
		return writer.Flush()
	}

	if err := writeLine("220 fake smtp ready"); err != nil {
		return err
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "EHLO ") || strings.HasPrefix(upper, "HELO "):
			if err := writeLine("250-fake"); err != nil {
				return err
			}
			if opts.advertiseAuth {
				if err := writeLine("250-AUTH PLAIN"); err != nil {
					return err
				}
			}
			if err := writeLine("250 OK"); err != nil {
				return err
			}
		case strings.HasPrefix(upper, "AUTH "):
			transcript.mu.Lock()
			transcript.authSeen = true
			transcript.mu.Unlock()
			if opts.rejectAuth {
				if err := writeLine("535 5.7.8 Authentication credentials invalid"); err != nil {
					return err
				}
				continue
			}
			if err := writeLine("235 2.7.0 Authentication successful"); err != nil {
				return err
			}
		case strings.HasPrefix(upper, "MAIL FROM:"):
			transcript.mu.Lock()
			transcript.mailFrom = extractSMTPAddress(line)
			transcript.mu.Unlock()
			if err := writeLine("250 OK"); err != nil {
				return err
			}
		case strings.HasPrefix(upper, "RCPT TO:"):
			if opts.rejectRcpt {
				if err := writeLine("550 5.1.1 mailbox unavailable"); err != nil {
					return err
				}
				continue
			}
			transcript.mu.Lock()
			transcript.rcpts = append(transcript.rcpts, extractSMTPAddress(line))
			transcript.mu.Unlock()
			if err := writeLine("250 OK"); err != nil {
				return err
			}
		case upper == "DATA":
			if err := writeLine("354 Start mail input; end with <CRLF>.<CRLF>"); err != nil {
				return err
			}
			var data strings.Builder
			for {
				msgLine, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				if msgLine == ".\r\n" {
					break
				}
				data.WriteString(msgLine)
			}
			transcript.mu.Lock()
			transcript.data = data.String()
			transcript.mu.Unlock()
			if err := writeLine("250 OK queued"); err != nil {
				return err
			}
		case upper == "QUIT":
			return writeLine("221 Bye")
		default:
			if err := writeLine("250 OK"); err != nil {
				return err
			}
		}
	}
}

func extractSMTPAddress(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start != -1 && end != -1 && end > start+1 {
		return strings.TrimSpace(line[start+1 : end])
	}
	if idx := strings.Index(line, ":"); idx != -1 && idx+1 < len(line) {
		return strings.TrimSpace(line[idx+1:])
	}
	return strings.TrimSpace(line)
}
