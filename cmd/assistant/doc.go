/*
assistant is a personal research assistant for a thesis student.

It keeps a task list you talk to over Telegram, scans arXiv and Semantic
Scholar every morning for papers relevant to your thesis topic, scores them
with Gemini, and serves a small web dashboard over the same SQLite file.

# Usage

	assistant <command> [flags]

# Commands

	bot        Run the Telegram bot and the daily scheduler
	web        Serve the web dashboard
	scan       Run the paper scan once
	digest     Print the morning digest (--send delivers it)
	initdb     Create the database and seed settings
	reindex    Rebuild the paper search index
	stats      Show store statistics

# Configuration

Settings come from an optional YAML file (--config) and the environment,
which wins:

	TELEGRAM_BOT_TOKEN        Bot token (bot)
	TELEGRAM_CHAT_ID          Delivery chat; learned from the first message if unset
	GEMINI_API_KEY            Scoring key (bot, scan)
	GEMINI_MODEL              Default gemini-2.0-flash
	SEMANTIC_SCHOLAR_API_KEY  Optional, raises the rate limit
	THESIS_TOPIC              Seeds the thesis topic setting
	PAPER_KEYWORDS            Comma-separated search keywords
	TIMEZONE                  IANA zone (default Europe/Istanbul)
	PAPER_SCAN_TIME           HH:MM (default 07:30)
	MORNING_DIGEST_TIME       HH:MM (default 08:30)
	MAX_PAPERS_PER_DAY        Per-source fetch and scoring budget (default 30)
	SCORE_THRESHOLD           Minimum relevance 0-100 (default 50)
	DATA_DIR, DB_PATH         Database location (default data/assistant.db)
	DB_DRIVER                 sqlite (pure Go, default) or sqlite3 (cgo)
	WEB_ADDR                  Dashboard address (default :8080)
	LOG_LEVEL                 debug, info, warn or error
	REQUEST_TIMEOUT           Per-call timeout for external services (default 30s)

The topic, keywords, times and time zone are copied into the database on
first start. After that the dashboard's settings page is authoritative.

# Chat

Write tasks in plain language:

	remind me about advisor meeting tomorrow at 15:00
	submit draft friday
	done advisor meeting
	snooze draft 2 hours

Commands: /tasks, /today, /week, /done <id>, /delete <id>,
/snooze <id> <amount> <unit>, /summary, /papers, /read <id>, /goals,
/goal <year> <text>, /templates, /scan, /help.

# Exit status

0 on clean shutdown, 2 for configuration errors, 1 for anything else.
*/
package main
