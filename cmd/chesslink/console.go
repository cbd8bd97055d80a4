package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/session"
)

type cmdKind int

const (
	cmdMove cmdKind = iota
	cmdPromote
	cmdResign
	cmdDraw
	cmdFEN
	cmdBoard
	cmdHelp
	cmdQuit
)

type command struct {
	kind  cmdKind
	from  nchess.Square
	to    nchess.Square
	promo nchess.PieceType
}

var promoLetters = map[byte]nchess.PieceType{
	'q': nchess.Queen,
	'r': nchess.Rook,
	'b': nchess.Bishop,
	'n': nchess.Knight,
}

var errUnknownCommand = errors.New("unknown command")

// parseCommand reads one stdin line: a UCI move, a lone promotion letter or
// a keyword.
func parseCommand(line string) (command, error) {
	line = strings.ToLower(strings.TrimSpace(line))
	switch line {
	case "resign":
		return command{kind: cmdResign}, nil
	case "draw":
		return command{kind: cmdDraw}, nil
	case "fen":
		return command{kind: cmdFEN}, nil
	case "board":
		return command{kind: cmdBoard}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}
	if len(line) == 1 {
		if pt, ok := promoLetters[line[0]]; ok {
			return command{kind: cmdPromote, promo: pt}, nil
		}
	}
	if len(line) != 4 && len(line) != 5 {
		return command{}, fmt.Errorf("%w: %q", errUnknownCommand, line)
	}
	from, ok := parseSquare(line[0:2])
	if !ok {
		return command{}, fmt.Errorf("%w: bad square %q", errUnknownCommand, line[0:2])
	}
	to, ok := parseSquare(line[2:4])
	if !ok {
		return command{}, fmt.Errorf("%w: bad square %q", errUnknownCommand, line[2:4])
	}
	c := command{kind: cmdMove, from: from, to: to, promo: nchess.NoPieceType}
	if len(line) == 5 {
		pt, ok := promoLetters[line[4]]
		if !ok {
			return command{}, fmt.Errorf("%w: bad promotion %q", errUnknownCommand, line[4:])
		}
		c.promo = pt
	}
	return c, nil
}

func parseSquare(s string) (nchess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

// readLines feeds stdin lines to the tick loop.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type console struct {
	s   *session.Session
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) banner() {
	c.printf("playing %s against %s\n", colorName(c.s.OwnColor()), peerLabel(c.s.PeerName()))
	c.printf("%s", c.s.Board().Draw())
	c.prompt()
}

func (c *console) prompt() {
	if c.s.Terminal() {
		return
	}
	if _, ok := c.s.PromotionPending(); ok {
		c.printf("promote to (q, r, b, n):\n")
		return
	}
	if c.s.State() == session.Normal {
		c.printf("your move:\n")
	}
}

// handle applies one line and reports whether to quit.
func (c *console) handle(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	cmd, err := parseCommand(line)
	if err != nil {
		c.printf("%v (type help)\n", err)
		return false
	}
	switch cmd.kind {
	case cmdQuit:
		return true
	case cmdHelp:
		c.printf("moves: e2e4, e7e8q   commands: resign, draw, fen, board, quit\n")
	case cmdFEN:
		c.printf("%s\n", c.s.Board().FEN())
	case cmdBoard:
		c.printf("%s", c.s.Board().Draw())
	case cmdDraw:
		if err := c.s.OfferDraw(); err != nil {
			c.printf("%v\n", err)
		} else {
			c.printf("draw offer will be sent with your next move\n")
		}
	case cmdResign:
		if err := c.s.Resign(); err != nil {
			c.printf("%v\n", err)
		}
	case cmdPromote:
		if err := c.s.ChoosePromotion(cmd.promo); err != nil {
			c.printf("%v\n", err)
		}
	case cmdMove:
		if err := c.s.Play(cmd.from, cmd.to); err != nil {
			c.printf("%v\n", err)
			break
		}
		if _, pending := c.s.PromotionPending(); pending && cmd.promo != nchess.NoPieceType {
			if err := c.s.ChoosePromotion(cmd.promo); err != nil {
				c.printf("%v\n", err)
			}
		}
		c.prompt()
	}
	return false
}

func (c *console) moved(last *board.Committed) {
	if last != nil {
		who := "peer"
		if last.Mover == c.s.OwnColor() {
			who = "you"
		}
		c.printf("%s played %s\n", who, last.SAN)
	}
	c.printf("%s", c.s.Board().Draw())
	if c.s.PeerOffersDraw() {
		c.printf("peer offers a draw; type draw and move to accept\n")
	}
	c.prompt()
}

func (c *console) finished(res session.Result) {
	winner := "nobody"
	if res.Winner != nchess.NoColor {
		winner = colorName(res.Winner)
	}
	c.printf("game over: %s (%s), winner: %s\n", res.EndState, res.Reason, winner)
}

func colorName(col nchess.Color) string {
	if col == nchess.White {
		return "white"
	}
	return "black"
}

func peerLabel(name string) string {
	if name == "" {
		return "anonymous peer"
	}
	return name
}
