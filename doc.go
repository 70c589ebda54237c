// Package assistant is a personal research assistant: a chat-driven task
// list, a daily paper scan and a small web dashboard over one SQLite file.
//
// This package implements:
//   - A gorm Store for tasks, papers, goals, settings and run markers
//   - An intent resolver that turns one chat message into one action
//   - A paper pipeline that fetches arXiv and Semantic Scholar results,
//     scores them with Gemini and keeps the relevant ones
//   - A digest composer, a cron scheduler and a Telegram front-end
//
// Basic usage:
//
//	store, err := assistant.Open("data/assistant.db", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	a := assistant.NewAssistant(store, nil)
//	reply, err := a.Handle(ctx, chatID, "remind me about advisor meeting tomorrow at 15:00")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(reply)
package assistant
