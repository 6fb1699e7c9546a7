// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides an interactive REPL (Read-Eval-Print Loop) for the
// epoch collector.
//
// Each named participant runs on a goroutine of its own, so the REPL can play
// out interleavings by hand: pin one participant, retire garbage through
// another, flush, and watch when the garbage actually runs.
//
// # Features
//
//   - Named participants, each confined to its own goroutine
//   - Pin, release, defer, flush and repin per participant
//   - Collector statistics on demand
//   - Graceful shutdown handling
//
// # Usage
//
// Start the REPL:
//
//	go run ./cmd/repl
//
// Example session:
//
//	> join a
//	> join b
//	> pin a
//	> defer a node1
//	> pin b
//	> unpin a
//	> flush a
//	> unpin b
//	> flush b
//	[garbage] node1 reclaimed
//
// # See Also
//
// For performance testing, see the bench tool.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kianostad/lfepoch"
)

// participant owns a goroutine and the handle and guards living on it.
type participant struct {
	name   string
	cmds   chan func()
	done   chan struct{}
	handle *lfepoch.Handle
	guards []*lfepoch.Guard
}

func newParticipant(name string, c *lfepoch.Collector) *participant {
	p := &participant{
		name: name,
		cmds: make(chan func()),
		done: make(chan struct{}),
	}
	go p.loop()
	p.do(func() { p.handle = c.Handle() })
	return p
}

func (p *participant) loop() {
	for fn := range p.cmds {
		fn()
		p.done <- struct{}{}
	}
}

// do runs fn on the participant's goroutine and waits for it.
func (p *participant) do(fn func()) {
	p.cmds <- fn
	<-p.done
}

// leave releases everything the participant holds and stops its goroutine.
func (p *participant) leave() {
	p.do(func() {
		for i := len(p.guards) - 1; i >= 0; i-- {
			p.guards[i].Release()
		}
		p.guards = nil
		p.handle.Release()
	})
	close(p.cmds)
}

type REPL struct {
	collector    *lfepoch.Collector
	participants map[string]*participant
}

func NewREPL(c *lfepoch.Collector) *REPL {
	return &REPL{
		collector:    c,
		participants: make(map[string]*participant),
	}
}

func (r *REPL) lookup(name string) (*participant, bool) {
	p, ok := r.participants[name]
	if !ok {
		fmt.Printf("No participant %q\n", name)
	}
	return p, ok
}

func (r *REPL) Run() {
	fmt.Println("Epoch Collector REPL")
	fmt.Println("Commands: join <p>, leave <p>, pin <p>, unpin <p>, defer <p> <label>, flush <p>, repin <p>, list, stats, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "join":
			if len(args) != 1 {
				fmt.Println("Usage: join <participant>")
				continue
			}
			if _, exists := r.participants[args[0]]; exists {
				fmt.Println("Participant already exists")
				continue
			}
			r.participants[args[0]] = newParticipant(args[0], r.collector)
			fmt.Println("OK")

		case "leave":
			if len(args) != 1 {
				fmt.Println("Usage: leave <participant>")
				continue
			}
			if p, ok := r.lookup(args[0]); ok {
				p.leave()
				delete(r.participants, args[0])
				fmt.Println("OK")
			}

		case "pin":
			if len(args) != 1 {
				fmt.Println("Usage: pin <participant>")
				continue
			}
			if p, ok := r.lookup(args[0]); ok {
				p.do(func() { p.guards = append(p.guards, p.handle.Pin()) })
				fmt.Printf("Pinned (%d guards)\n", len(p.guards))
			}

		case "unpin":
			if len(args) != 1 {
				fmt.Println("Usage: unpin <participant>")
				continue
			}
			if p, ok := r.lookup(args[0]); ok {
				if len(p.guards) == 0 {
					fmt.Println("Not pinned")
					continue
				}
				p.do(func() {
					last := len(p.guards) - 1
					p.guards[last].Release()
					p.guards = p.guards[:last]
				})
				fmt.Printf("Released (%d guards)\n", len(p.guards))
			}

		case "defer":
			if len(args) != 2 {
				fmt.Println("Usage: defer <participant> <label>")
				continue
			}
			if p, ok := r.lookup(args[0]); ok {
				if len(p.guards) == 0 {
					fmt.Println("Not pinned")
					continue
				}
				label := args[1]
				p.do(func() {
					p.guards[len(p.guards)-1].Defer(func() {
						fmt.Printf("[garbage] %s reclaimed\n", label)
					})
				})
				fmt.Println("Deferred")
			}

		case "flush", "repin":
			if len(args) != 1 {
				fmt.Printf("Usage: %s <participant>\n", cmd)
				continue
			}
			if p, ok := r.lookup(args[0]); ok {
				p.do(func() {
					if cmd == "repin" {
						if len(p.guards) > 0 {
							p.guards[len(p.guards)-1].Repin()
						}
						return
					}
					g := p.handle.Pin()
					g.Flush()
					g.Release()
				})
				fmt.Printf("OK (epoch %d)\n", r.collector.Epoch())
			}

		case "list":
			names := make([]string, 0, len(r.participants))
			for name := range r.participants {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s: %d guards\n", name, len(r.participants[name].guards))
			}

		case "stats":
			out, err := r.collector.Stats().ExportJSON()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println(string(out))

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}
	}
}

// Close releases every participant and the collector.
func (r *REPL) Close() {
	for name, p := range r.participants {
		p.leave()
		delete(r.participants, name)
	}
	r.collector.Release()
}

func main() {
	verbose := flag.Bool("verbose", false, "log collector activity to stderr")
	bagCapacity := flag.Int("bag", 4, "deferred functions buffered per participant")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().
		Level(level)

	c := lfepoch.NewCollector(
		lfepoch.WithBagCapacity(*bagCapacity),
		lfepoch.WithLogger(logger),
	)
	repl := NewREPL(c)

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived shutdown signal. Exiting...")
		os.Exit(0)
	}()

	repl.Run()
	repl.Close()
}
