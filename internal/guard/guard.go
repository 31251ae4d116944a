// Package guard はページごとの認証・役割チェックを提供する。
// 判定は純粋関数で、ナビゲーションのたびに評価し直す。
package guard

import (
	"strings"

	"github.com/hitoshi/jobboard/internal/model"
)

// 公開ページのパス
const (
	PathHome   = "/"
	PathLogin  = "/login"
	PathSignup = "/signup"
)

// Decision はガードの判定結果。
// Allow がfalseの場合は Redirect へ遷移させる。
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

// Evaluate はページに必要な役割とユーザーから表示可否を判定する。
//
//   - 未ログイン: ログインページへ
//   - 役割が一致しない: 要求された役割ではなく、ユーザー自身のダッシュボードへ
//   - 一致: 表示を許可
//
// requiredが空の場合はログイン済みであれば許可する。
// adminの要求はroleがadminであるかスタッフフラグで満たされる。
func Evaluate(user *model.User, required model.Role) Decision {
	if user == nil {
		return Decision{Redirect: PathLogin}
	}
	if satisfies(user, required) {
		return Decision{Allow: true}
	}
	return Decision{Redirect: user.DashboardPath()}
}

func satisfies(user *model.User, required model.Role) bool {
	switch required {
	case "":
		return true
	case model.RoleAdmin:
		return user.IsAdmin()
	default:
		return user.Role == required
	}
}

// Access はページの公開範囲を表す。
type Access int

const (
	// AccessUnknown は定義されていないパス。
	AccessUnknown Access = iota
	// AccessPublicOnly は未ログインユーザー向けのページ。ログイン済みならダッシュボードへ。
	AccessPublicOnly
	// AccessPublic は誰でも閲覧できるページ。
	AccessPublic
	// AccessProtected はログインと役割チェックが必要なページ。
	AccessProtected
)

// Route はページのパスと公開範囲の定義。
type Route struct {
	Path     string
	Access   Access
	Required model.Role
}

// Routes はクライアントのページ定義。末尾が "/*" のパスは前方一致で扱う。
var Routes = []Route{
	{Path: PathHome, Access: AccessPublicOnly},
	{Path: PathLogin, Access: AccessPublicOnly},
	{Path: PathSignup, Access: AccessPublicOnly},
	{Path: "/jobs", Access: AccessPublic},
	{Path: "/jobs/*", Access: AccessPublic},

	{Path: "/student/dashboard", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/jobs", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/jobs/*", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/applications", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/bookmarks", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/profile", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/messages", Access: AccessProtected, Required: model.RoleStudent},
	{Path: "/student/messages/*", Access: AccessProtected, Required: model.RoleStudent},

	{Path: "/recruiter/dashboard", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/jobs", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/jobs/*", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/applications", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/applications/*", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/profile", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/messages", Access: AccessProtected, Required: model.RoleRecruiter},
	{Path: "/recruiter/messages/*", Access: AccessProtected, Required: model.RoleRecruiter},

	{Path: "/admin/dashboard", Access: AccessProtected, Required: model.RoleAdmin},
	{Path: "/admin/users", Access: AccessProtected, Required: model.RoleAdmin},
	{Path: "/admin/jobs", Access: AccessProtected, Required: model.RoleAdmin},
	{Path: "/admin/applications", Access: AccessProtected, Required: model.RoleAdmin},
}

// Lookup はパスに一致するページ定義を返す。
func Lookup(path string) (Route, bool) {
	if path == "" {
		path = PathHome
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	for _, r := range Routes {
		if prefix, ok := strings.CutSuffix(r.Path, "/*"); ok {
			if strings.HasPrefix(path, prefix+"/") {
				return r, true
			}
			continue
		}
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Resolve はパスとユーザーから遷移先を判定する。
// 公開専用ページはログイン済みならダッシュボードへ、未定義のパスは
// ログイン済みならダッシュボード、未ログインならトップへ遷移させる。
func Resolve(user *model.User, path string) Decision {
	route, ok := Lookup(path)
	if !ok {
		if user != nil {
			return Decision{Redirect: user.DashboardPath()}
		}
		return Decision{Redirect: PathHome}
	}

	switch route.Access {
	case AccessPublicOnly:
		if user != nil {
			if dest := user.DashboardPath(); dest != PathHome {
				return Decision{Redirect: dest}
			}
		}
		return Decision{Allow: true}
	case AccessPublic:
		return Decision{Allow: true}
	default:
		return Evaluate(user, route.Required)
	}
}
