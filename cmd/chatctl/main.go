/*
Package main is a small terminal client for the chat server.

It signs in, connects the live stream and keeps a client.State in sync while the
user lists, opens and writes to conversations. Lines starting with "/" are commands;
anything else is sent to the open conversation.
*/
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"duochat/internal/app/chat"
	"duochat/internal/app/message"
	"duochat/internal/client"
	"duochat/internal/pkg/logx"
)

const usage = `commands:
  /list               show conversations (* marks unread)
  /search <query>     find users
  /open <userId>      open the conversation with a user
  /close              close the open conversation
  /quit               exit
  <text>              send to the open conversation`

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	username := flag.String("register", "", "register a new account with this username before signing in")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logx.InitGlobalLogger(*verbose)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "chatctl: -email and -password are required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(*server, nil)

	var (
		auth client.AuthResult
		err  error
	)
	if *username != "" {
		auth, err = api.Register(ctx, *username, *email, *password)
	} else {
		auth, err = api.Login(ctx, *email, *password)
	}
	if err != nil {
		logx.Fatal(err, "Sign-in failed")
	}
	fmt.Printf("signed in as %s (%s)\n", auth.User.Username, auth.User.ID)

	stream, err := client.Dial(ctx, *server, auth.Token)
	if err != nil {
		logx.Fatal(err, "Failed to open live stream")
	}
	defer stream.Close()

	state := client.NewState(api, auth.User.ID)
	if err := state.Refresh(ctx); err != nil {
		fmt.Println("could not load conversations:", err)
	}

	go func() {
		for env := range stream.Events() {
			if err := state.Apply(ctx, env); err != nil {
				logx.Warn("Failed to apply event", "error", err.Error())
			}
			printEvent(env, state)
		}
		if err := stream.Err(); err != nil {
			fmt.Println("stream closed:", err)
		}
		stop()
	}()

	fmt.Println(usage)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, api, stream, state, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, api *client.API, stream *client.Stream, state *client.State, line string) bool {
	if line == "" {
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit":
		return true
	case "/list":
		if err := state.Refresh(ctx); err != nil {
			fmt.Println("error:", err)
		}
		printConversations(state)
	case "/search":
		users, err := api.SearchUsers(ctx, arg)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		for _, u := range users {
			fmt.Printf("  %s  %s <%s>\n", u.ID, u.Username, u.Email)
		}
	case "/open":
		conv, err := api.FindOrCreateConversation(ctx, arg)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		if err := state.Open(ctx, conv.ID); err != nil {
			fmt.Println("error:", err)
			return false
		}
		if err := stream.JoinConversation(conv.ID); err != nil {
			fmt.Println("error:", err)
		}
		for _, e := range state.Messages() {
			printMessage(e.View)
		}
	case "/close":
		state.Close()
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Println(usage)
			return false
		}
		if _, err := state.SendDirect(ctx, line); err != nil {
			fmt.Println("send failed:", err)
		}
	}
	return false
}

func printEvent(env chat.Envelope, state *client.State) {
	switch env.Type {
	case chat.EventReceiveMessage:
		v, err := client.DecodeMessage(env)
		if err != nil {
			return
		}
		if v.Target.ConversationID() == state.Active() {
			printMessage(v)
			return
		}
		fmt.Printf("(new message from %s, %d unread conversations)\n", v.Sender.Username, state.UnreadCount())
	case chat.EventSessionReplaced:
		fmt.Println("(signed in elsewhere; this session no longer receives direct deliveries)")
	case chat.EventError:
		fmt.Println("server error:", client.DecodeError(env))
	}
}

func printConversations(state *client.State) {
	for _, c := range state.Conversations() {
		marker := " "
		if state.Unread(c.ID) {
			marker = "*"
		}
		names := make([]string, 0, len(c.Users))
		for _, u := range c.Users {
			names = append(names, u.Username)
		}
		last := ""
		if c.LastMessage != nil {
			last = c.LastMessage.Content
		}
		fmt.Printf("%s %s  [%s]  %s\n", marker, c.ID, strings.Join(names, ", "), last)
	}
}

func printMessage(v message.View) {
	fmt.Printf("[%s] %s: %s\n", v.CreatedAt.Local().Format("15:04"), v.Sender.Username, v.Content)
}
