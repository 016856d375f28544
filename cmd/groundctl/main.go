// Command groundctl is the ground-station operator tool. It signs and sends
// commands to the satellite, listens for beacons and telemetry, archives
// everything it hears in a local SQLite database, and predicts upcoming
// passes from a TLE.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/auth"
	"github.com/edsonpavoni/orbitalTemple/internal/groundlog"
	"github.com/edsonpavoni/orbitalTemple/internal/groundtrack"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "sign":
		err = runSign(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	case "listen":
		err = runListen(os.Args[2:])
	case "passes":
		err = runPasses(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "groundctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: groundctl <command> [flags]

commands:
  sign    build a signed command string
  send    sign and transmit a command over UDP, printing the responses
  listen  receive and archive beacons and telemetry
  passes  predict upcoming passes from a TLE`)
}

// buildCommand assembles and signs one uplink string.
func buildCommand(satID, keyHex, name, path, data string) (string, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", fmt.Errorf("invalid key hex: %w", err)
	}
	signer := auth.NewSigner(key)
	body := fmt.Sprintf("%s-%s&%s@%s", satID, name, path, data)
	return body + "#" + signer.Tag([]byte(body)), nil
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	satID := fs.String("sat", "SAT001", "satellite identifier")
	keyHex := fs.String("key", "", "pre-shared HMAC key, hex encoded")
	name := fs.String("cmd", "Ping", "command name")
	path := fs.String("path", "", "command path argument")
	data := fs.String("data", "", "command data argument")
	fs.Parse(args)

	cmd, err := buildCommand(*satID, *keyHex, *name, *path, *data)
	if err != nil {
		return err
	}
	fmt.Println(cmd)
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:8471", "satellite UDP address")
	satID := fs.String("sat", "SAT001", "satellite identifier")
	keyHex := fs.String("key", "", "pre-shared HMAC key, hex encoded")
	name := fs.String("cmd", "Ping", "command name")
	path := fs.String("path", "", "command path argument")
	data := fs.String("data", "", "command data argument")
	wait := fs.Duration("wait", 3*time.Second, "how long to collect responses")
	dbPath := fs.String("db", "", "archive database path (empty = no archiving)")
	fs.Parse(args)

	cmd, err := buildCommand(*satID, *keyHex, *name, *path, *data)
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer conn.Close()

	sentAt := time.Now().UTC()
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	// Collect every response line until the window closes. Multi-line
	// replies (directory listings, file reads) arrive as separate datagrams.
	var responses []string
	conn.SetReadDeadline(time.Now().Add(*wait))
	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			break
		}
		line := strings.TrimRight(string(buf[:n]), "\r\n")
		responses = append(responses, line)
		fmt.Println(line)
	}
	if len(responses) == 0 {
		fmt.Fprintln(os.Stderr, "no response (satellite out of range, or command policy is silence)")
	}

	if *dbPath != "" {
		db, err := groundlog.Open(*dbPath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer db.Close()
		if err := db.RecordExchange(sentAt, cmd, strings.Join(responses, "\n")); err != nil {
			return fmt.Errorf("archive exchange: %w", err)
		}
	}
	return nil
}

func runListen(args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	addr := fs.String("addr", ":8470", "UDP address to listen on")
	dbPath := fs.String("db", "groundstation.db", "archive database path")
	fs.Parse(args)

	db, err := groundlog.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", *addr, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Printf("listening on %s, archiving to %s\n", *addr, *dbPath)
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		line := strings.TrimRight(string(buf[:n]), "\r\n")
		now := time.Now().UTC()
		fmt.Printf("[%s] %s\n", now.Format("15:04:05"), line)

		if mode, ok := beaconMode(line); ok {
			if err := db.RecordBeacon(now, mode, line); err != nil {
				fmt.Fprintf(os.Stderr, "archive beacon: %v\n", err)
			}
		} else if strings.HasPrefix(line, "T+") {
			if err := db.RecordTelemetry(now, line); err != nil {
				fmt.Fprintf(os.Stderr, "archive telemetry: %v\n", err)
			}
		}
	}
}

// beaconMode classifies a received line as a beacon by its message prefix.
func beaconMode(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "ORBITAL TEMPLE:SEARCHING"):
		return "acquisition", true
	case strings.HasPrefix(line, "ORBITAL TEMPLE:ALIVE"):
		return "steady", true
	case strings.HasPrefix(line, "ORBITAL TEMPLE:LOST"):
		return "lost", true
	default:
		return "", false
	}
}

func runPasses(args []string) error {
	fs := flag.NewFlagSet("passes", flag.ExitOnError)
	tle1 := fs.String("tle1", "", "TLE line 1")
	tle2 := fs.String("tle2", "", "TLE line 2")
	lat := fs.Float64("lat", -23.55, "ground station latitude, degrees")
	lon := fs.Float64("lon", -46.63, "ground station longitude, degrees")
	alt := fs.Float64("alt", 0, "ground station altitude, km")
	hours := fs.Int("hours", 24, "prediction window in hours")
	minEl := fs.Float64("min-elevation", 10, "minimum elevation, degrees")
	fs.Parse(args)

	if *tle1 == "" || *tle2 == "" {
		return fmt.Errorf("both -tle1 and -tle2 are required")
	}

	p := groundtrack.NewPredictor(*tle1, *tle2, groundtrack.Observer{
		LatDeg: *lat, LonDeg: *lon, AltKm: *alt,
	})
	p.MinElevationDeg = *minEl

	start := time.Now().UTC()
	passes := p.Passes(start, time.Duration(*hours)*time.Hour, 30*time.Second)
	if len(passes) == 0 {
		fmt.Printf("no passes above %.0f° in the next %dh\n", *minEl, *hours)
		return nil
	}
	for _, pass := range passes {
		fmt.Println(pass)
	}
	return nil
}
