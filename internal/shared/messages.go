// Package shared holds the localized user-facing messages and pagination
// metadata used across the HTTP handlers.
package shared

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for user-facing API copy.
const (
	MsgUnauthenticated   = "auth.unauthenticated"
	MsgAccountInactive   = "auth.account_inactive"
	MsgEmployeeNotFound  = "auth.employee_not_found"
	MsgRoleResolution    = "auth.role_resolution"
	MsgServerError       = "server.error"
	MsgInvalidRequest    = "request.invalid"
	MsgRateLimited       = "request.rate_limited"
	MsgInvalidLogin      = "auth.invalid_login"
	MsgLoggedIn          = "auth.logged_in"
	MsgLoggedOut         = "auth.logged_out"
	MsgLogoutFailed      = "auth.logout_failed"
	MsgCustomersView     = "customers.denied_view"
	MsgCustomersCreate   = "customers.denied_create"
	MsgCustomerCreated   = "customers.created"
	MsgPermissionDenied  = "auth.permission_denied"
	MsgNavigationFailure = "navigation.failed"
	MsgPageDenied        = "page.access_denied"
	MsgPageInvalidRole   = "page.invalid_role"
)

var supported = []language.Tag{language.Vietnamese, language.English}

var matcher = language.NewMatcher(supported)

var messages = mustBuildCatalog(map[string][2]string{
	MsgUnauthenticated:   {"Chưa đăng nhập", "Not signed in"},
	MsgAccountInactive:   {"Tài khoản đã bị vô hiệu hóa", "Account is inactive"},
	MsgEmployeeNotFound:  {"Không tìm thấy thông tin nhân viên", "Employee not found"},
	MsgRoleResolution:    {"Không xác định được vai trò", "Role could not be resolved"},
	MsgServerError:       {"Lỗi máy chủ", "Server error"},
	MsgInvalidRequest:    {"Dữ liệu không hợp lệ", "Invalid request"},
	MsgRateLimited:       {"Quá nhiều yêu cầu, vui lòng thử lại sau", "Too many requests, try again later"},
	MsgInvalidLogin:      {"Email hoặc mật khẩu không đúng", "Invalid email or password"},
	MsgLoggedIn:          {"Đăng nhập thành công", "Signed in"},
	MsgLoggedOut:         {"Đăng xuất thành công", "Signed out"},
	MsgLogoutFailed:      {"Đăng xuất thất bại", "Sign out failed"},
	MsgCustomersView:     {"Bạn không có quyền xem khách hàng", "You may not view customers"},
	MsgCustomersCreate:   {"Bạn không có quyền tạo khách hàng", "You may not create customers"},
	MsgCustomerCreated:   {"Tạo khách hàng thành công", "Customer created"},
	MsgPermissionDenied:  {"Bạn không có quyền thực hiện thao tác này", "Permission denied"},
	MsgNavigationFailure: {"Không tải được menu", "Navigation could not be loaded"},
	MsgPageDenied:        {"Bạn không có quyền truy cập trang này", "You do not have access to that page"},
	MsgPageInvalidRole:   {"Vai trò của bạn không hợp lệ, vui lòng liên hệ quản trị viên", "Your role is not valid, contact an administrator"},
})

func mustBuildCatalog(entries map[string][2]string) *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Vietnamese))
	for key, texts := range entries {
		if err := b.SetString(language.Vietnamese, key, texts[0]); err != nil {
			panic(err)
		}
		if err := b.SetString(language.English, key, texts[1]); err != nil {
			panic(err)
		}
	}
	return b
}

// Language picks the response language from Accept-Language. Vietnamese
// is the default.
func Language(r *http.Request) language.Tag {
	if r == nil {
		return language.Vietnamese
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.Vietnamese
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Translate returns the text for key in the request's language.
func Translate(r *http.Request, key string) string {
	return T(Language(r), key)
}

// T returns the text for key in lang.
func T(lang language.Tag, key string) string {
	return message.NewPrinter(lang, message.Catalog(messages)).Sprintf(key)
}
