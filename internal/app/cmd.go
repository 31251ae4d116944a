package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はブラウザ向けのBFFサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandLogin はターミナルからログインしてセッションを保存することを示す。
	CommandLogin Command = "login"
	// CommandLogout は保存済みのセッションを破棄することを示す。
	CommandLogout Command = "logout"
	// CommandWhoami は保存済みのセッションのユーザーを表示することを示す。
	CommandWhoami Command = "whoami"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "login":
		return CommandLogin
	case "logout":
		return CommandLogout
	case "whoami":
		return CommandWhoami
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
