package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/duel/internal/handlers"
	"github.com/jason-s-yu/duel/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagBotURL     string
	flagBotRoom    string
	flagBotColor   string
	flagBotActions int
	flagBotLose    bool
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Connect a test client",
	Long: `Connect to a running server, join a random (or named) match and log every
notification received. Once paired the bot sends --actions actions, then
reports a loss if --lose is set and accepts any rematch request.

Examples:
  duel bot                       # join the random queue
  duel bot --name den --color red`,
	RunE: runBot,
}

func init() {
	botCmd.Flags().StringVar(&flagBotURL, "url", "ws://localhost:8080/play/ws", "Websocket endpoint")
	botCmd.Flags().StringVar(&flagBotRoom, "name", "", "Named room to join (random queue if empty)")
	botCmd.Flags().StringVar(&flagBotColor, "color", "", "Attribute shown to the opponent")
	botCmd.Flags().IntVar(&flagBotActions, "actions", 3, "Actions to send once paired")
	botCmd.Flags().BoolVar(&flagBotLose, "lose", false, "Report a loss after the actions")
}

func runBot(_ *cobra.Command, _ []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, _, err := websocket.Dial(dialCtx, flagBotURL, &websocket.DialOptions{
		Subprotocols: []string{handlers.Subprotocol},
	})
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", flagBotURL, err)
	}
	defer c.CloseNow()

	b := &bot{conn: c, log: logrus.NewEntry(logger).WithField("url", flagBotURL)}
	if flagBotRoom != "" {
		err = b.send(ctx, handlers.PacketJoinNamed, handlers.JoinNamedData{Color: flagBotColor, RoomName: flagBotRoom})
	} else {
		err = b.send(ctx, handlers.PacketJoinRandom, flagBotColor)
	}
	if err != nil {
		return err
	}

	err = b.loop(ctx)
	if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		c.Close(websocket.StatusNormalClosure, "bye")
		return nil
	}
	return err
}

type bot struct {
	conn *websocket.Conn
	log  *logrus.Entry
}

func (b *bot) send(ctx context.Context, typ string, data any) error {
	var raw json.RawMessage
	if data != nil {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return err
		}
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, b.conn, handlers.Packet{Type: typ, Data: raw})
}

// loop logs notifications and plays along until the connection or ctx ends.
func (b *bot) loop(ctx context.Context) error {
	for {
		var n models.Notification
		if err := wsjson.Read(ctx, b.conn, &n); err != nil {
			return err
		}
		b.log.WithFields(logrus.Fields{
			"type":  n.Type,
			"room":  n.RoomID,
			"color": n.OpponentAttr,
		}).Info("received")

		switch n.Type {
		case models.NoteRoomAssigned, models.NoteRematchStarted:
			if err := b.play(ctx); err != nil {
				return err
			}
		case models.NoteBothLost, models.NoteRematchRequest:
			if err := b.send(ctx, handlers.PacketRematchRequest, nil); err != nil {
				return err
			}
		case models.NoteOpponentDisconnected:
			// conceding ends the room so the bot can queue again
			b.log.Info("opponent left, looking for a new one")
			if err := b.send(ctx, handlers.PacketLoss, nil); err != nil {
				return err
			}
			if err := b.send(ctx, handlers.PacketFindNewOpponent, flagBotColor); err != nil {
				return err
			}
		case models.NoteRoomFull, models.NoteError:
			return fmt.Errorf("server said %s: %s", n.Type, n.Message)
		}
	}
}

func (b *bot) play(ctx context.Context) error {
	for i := 0; i < flagBotActions; i++ {
		if err := b.send(ctx, handlers.PacketAction, map[string]int{"move": i}); err != nil {
			return err
		}
	}
	if flagBotLose {
		return b.send(ctx, handlers.PacketLoss, nil)
	}
	return nil
}
