// Command filecachestore-cli is an interactive shell over a store.Store,
// for poking at a cache file without writing a Go program.
package main

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/nilsbloom/filecachestore/store"
)

func main() {
	dir := flag.StringP("dir", "d", "filecachestore-data", "directory holding the cache file")
	cacheName := flag.StringP("name", "n", "cli", "cache name; backs <dir>/<name>.dat")
	maxEntries := flag.IntP("max-entries", "m", 0, "maximum entries before LRU eviction kicks in (0 = unbounded)")
	flag.Parse()

	s, err := store.Open(
		store.WithLocation(*dir),
		store.WithCacheName(*cacheName),
		store.WithMaxEntries(*maxEntries),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Stop()

	fmt.Printf("Opened %s/%s.dat\n", *dir, *cacheName)
	fmt.Println("Type 'help' for commands or 'exit' to quit.")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return
		}
		if err != nil {
			fmt.Println("input error:", err)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		args, err := shellquote.Split(input)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}

		if args[0] == "exit" {
			return
		}

		handleCommand(s, args)
	}
}

func handleCommand(s *store.Store, args []string) {
	cmd := strings.ToLower(args[0])
	rest := args[1:]

	switch cmd {
	case "help":
		printHelp()
	case "set":
		handleSet(s, rest)
	case "get":
		handleGet(s, rest)
	case "delete":
		handleDelete(s, rest)
	case "exists":
		handleExists(s, rest)
	case "list":
		handleList(s)
	case "count":
		fmt.Println(s.Size())
	case "purge":
		if err := s.Purge(); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("ok")
	case "clear":
		if err := s.Clear(); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("ok")
	case "stats":
		handleStats(s)
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}
}

func handleSet(s *store.Store, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: set <key> <value> [ttlSeconds]")
		return
	}

	entry := store.Entry{Key: []byte(args[0]), Value: []byte(args[1])}
	if len(args) >= 3 {
		ttl, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Println("invalid ttlSeconds:", err)
			return
		}
		entry.ExpiryTime = time.Now().Add(time.Duration(ttl) * time.Second).UnixMilli()
	}

	if err := s.Store(entry); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func handleGet(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")
		return
	}

	v, err := s.Load([]byte(args[0]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if v == nil {
		fmt.Println("nil")
		return
	}
	fmt.Println(string(v.([]byte)))
}

func handleDelete(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: delete <key>")
		return
	}

	ok, err := s.Remove([]byte(args[0]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("nil")
		return
	}
	fmt.Println("ok")
}

func handleExists(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: exists <key>")
		return
	}

	ok, err := s.ContainsKey([]byte(args[0]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(ok)
}

func handleList(s *store.Store) {
	keys, err := s.LoadAllKeys(nil)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if len(keys) == 0 {
		fmt.Println("nil")
		return
	}
	for _, k := range keys {
		fmt.Println(string(k.([]byte)))
	}
}

func handleStats(s *store.Store) {
	st := s.Stats()
	fmt.Printf("entries=%d freeSlots=%d fileBytes=%d\n", st.Entries, st.FreeSlots, st.FileBytes)
}

func printHelp() {
	fmt.Print(`Available Commands:

set <key> <value> [ttlSeconds]
  Store a value for the given key, optionally expiring after ttlSeconds.

get <key>
  Retrieve the value for a key. Prints nil if absent or expired.

delete <key>
  Remove a key. Prints nil if it wasn't present.

exists <key>
  Print true or false.

count
  Print the number of indexed entries.

list
  Print every indexed key.

purge
  Remove every expired entry.

clear
  Empty the store.

stats
  Print entry/free-slot/file-size counters.

exit
  Quit the shell.
`)
}
