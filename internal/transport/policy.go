package transport

import "fmt"

// Mode 控制跨域请求的处理方式，取值与浏览器 fetch 的 mode 一致。
type Mode string

const (
	ModeCORS       Mode = "cors"
	ModeNoCORS     Mode = "no-cors"
	ModeSameOrigin Mode = "same-origin"
)

// Credentials 控制何时附带 Cookie / Bearer 凭证。
type Credentials string

const (
	CredentialsOmit       Credentials = "omit"
	CredentialsSameOrigin Credentials = "same-origin"
	CredentialsInclude    Credentials = "include"
)

// Policy 是 puncher 固定使用的传输选项。
type Policy struct {
	Mode        Mode
	Credentials Credentials
}

// DefaultPolicy 允许跨域（结果可能不透明），仅同源时附带凭证。
func DefaultPolicy() Policy {
	return Policy{Mode: ModeNoCORS, Credentials: CredentialsSameOrigin}
}

// ParsePolicy 将配置字符串转换为 Policy，空值回退默认。
func ParsePolicy(mode, credentials string) (Policy, error) {
	policy := DefaultPolicy()
	switch Mode(mode) {
	case "":
	case ModeCORS, ModeNoCORS, ModeSameOrigin:
		policy.Mode = Mode(mode)
	default:
		return Policy{}, fmt.Errorf("unsupported fetch mode: %s", mode)
	}
	switch Credentials(credentials) {
	case "":
	case CredentialsOmit, CredentialsSameOrigin, CredentialsInclude:
		policy.Credentials = Credentials(credentials)
	default:
		return Policy{}, fmt.Errorf("unsupported credentials policy: %s", credentials)
	}
	return policy, nil
}

// includeCredentials 判断本次请求是否附带凭证。
func (p Policy) includeCredentials(sameOrigin bool) bool {
	switch p.Credentials {
	case CredentialsInclude:
		return true
	case CredentialsSameOrigin:
		return sameOrigin
	default:
		return false
	}
}
