// Package notification pushes scan lifecycle alerts to Discord. Every helper
// is safe to call on a nil client, so callers never need to guard on whether
// notifications are configured.
package notification

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Message struct {
	Title       string
	Description string
	Severity    string
	Fields      map[string]string
	Timestamp   time.Time
}

type Client struct {
	sg        *discordgo.Session
	channelID string
}

// NewClient connects the Discord bot. Returns (nil, nil) when no token is
// configured, which callers treat as notifications disabled.
func NewClient() (*Client, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, nil
	}

	channelID := os.Getenv("DISCORD_CHANNEL_ID")
	if channelID == "" {
		return nil, fmt.Errorf("DISCORD_CHANNEL_ID not set")
	}

	sg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	if err := sg.Open(); err != nil {
		return nil, err
	}

	return &Client{sg: sg, channelID: channelID}, nil
}

func severityColor(severity string) int {
	switch severity {
	case "critical":
		return 0x8B0000
	case "high":
		return 0xFF0000
	case "medium":
		return 0xFF8C00
	case "low":
		return 0xFFD700
	case "info":
		return 0x00BFFF
	default:
		return 0x808080
	}
}

func (c *Client) Send(msg Message) error {
	if c == nil || c.sg == nil {
		return nil
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       severityColor(msg.Severity),
		Timestamp:   msg.Timestamp.Format(time.RFC3339),
	}

	if len(msg.Fields) > 0 {
		fields := make([]*discordgo.MessageEmbedField, 0, len(msg.Fields))
		for key, value := range msg.Fields {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   key,
				Value:  value,
				Inline: true,
			})
		}
		embed.Fields = fields
	}

	_, err := c.sg.ChannelMessageSendEmbed(c.channelID, embed)
	return err
}

// ScanCompleted announces a finished scan job
func (c *Client) ScanCompleted(jobID, jobType, domain string, duration time.Duration) error {
	return c.Send(Message{
		Title:       "Scan completed",
		Description: fmt.Sprintf("%s finished against %s", jobType, domain),
		Severity:    "info",
		Fields: map[string]string{
			"Job":      jobID,
			"Duration": duration.Round(time.Second).String(),
		},
	})
}

// ScanFailed announces a failed scan job
func (c *Client) ScanFailed(jobID, jobType, domain, reason string) error {
	return c.Send(Message{
		Title:       "Scan failed",
		Description: fmt.Sprintf("%s failed against %s", jobType, domain),
		Severity:    "high",
		Fields: map[string]string{
			"Job":   jobID,
			"Error": truncate(reason, 900),
		},
	})
}

// CriticalFindings alerts on critical-severity results, the signal bounty
// hunters actually page on
func (c *Client) CriticalFindings(domain string, count int, jobType string) error {
	if count == 0 {
		return nil
	}
	return c.Send(Message{
		Title:       "Critical findings",
		Description: fmt.Sprintf("%d critical finding(s) on %s", count, domain),
		Severity:    "critical",
		Fields: map[string]string{
			"Source": jobType,
		},
	})
}

// NewSubdomains announces domains first seen by the discovery monitor
func (c *Client) NewSubdomains(domain string, subdomains []string) error {
	if len(subdomains) == 0 {
		return nil
	}
	shown := subdomains
	if len(shown) > 20 {
		shown = shown[:20]
	}
	return c.Send(Message{
		Title:       "New subdomains discovered",
		Description: fmt.Sprintf("%d new subdomain(s) under %s", len(subdomains), domain),
		Severity:    "info",
		Fields: map[string]string{
			"Hosts": truncate(strings.Join(shown, "\n"), 900),
		},
	})
}

// WorkflowCompleted summarizes a finished comprehensive assessment
func (c *Client) WorkflowCompleted(domain string, critical, high int, duration time.Duration) error {
	severity := "info"
	if critical > 0 {
		severity = "critical"
	} else if high > 0 {
		severity = "high"
	}
	return c.Send(Message{
		Title:       "Comprehensive assessment completed",
		Description: fmt.Sprintf("Full workflow finished for %s", domain),
		Severity:    severity,
		Fields: map[string]string{
			"Critical": fmt.Sprintf("%d", critical),
			"High":     fmt.Sprintf("%d", high),
			"Duration": duration.Round(time.Second).String(),
		},
	})
}

func (c *Client) Close() error {
	if c == nil || c.sg == nil {
		return nil
	}
	return c.sg.Close()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
