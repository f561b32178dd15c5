package extractor

import (
	"regexp"
	"strings"
)

// ChallengeDetector 反爬挑战页检测器
//
// Cloudflare 等防护在拦截时常返回 200 状态码和一个挑战页，
// 抓取层据此把该路由视为失败并继续尝试下一条路由。
//
// 识别依据：
//   - 固定文案（"verify you are human"、"cloudflare ray id" 等）
//   - 挑战脚本路径 /cdn-cgi/challenge-platform/
//   - 标题 "Just a moment..." / "Attention Required!"
type ChallengeDetector struct {
	phrases    []string
	titleRegex *regexp.Regexp
	scriptPath string
}

// NewChallengeDetector 创建检测器
func NewChallengeDetector() *ChallengeDetector {
	return &ChallengeDetector{
		phrases: []string{
			"attention required",
			"cloudflare ray id",
			"what can i do to resolve this?",
			"why have i been blocked?",
			"performance & security by cloudflare",
			"verifying you are human",
			"verify you are human",
			"checking your browser",
			"please wait while we verify",
		},
		titleRegex: regexp.MustCompile(`(?i)<title>\s*(just a moment\.\.\.|attention required!|access denied)`),
		scriptPath: "/cdn-cgi/challenge-platform/",
	}
}

// IsChallenge 判断 HTML 是否为挑战/拦截页
func (d *ChallengeDetector) IsChallenge(html string) bool {
	if html == "" {
		return false
	}
	if d.titleRegex.MatchString(html) {
		return true
	}

	lower := strings.ToLower(html)
	hits := 0
	for _, p := range d.phrases {
		if strings.Contains(lower, p) {
			hits++
		}
	}
	// 正常商品页偶尔会出现单个短语（如页脚文案），挑战页通常多个同时出现
	if hits >= 2 {
		return true
	}
	return hits == 1 && strings.Contains(lower, d.scriptPath)
}

// 默认检测器实例
var defaultChallengeDetector = NewChallengeDetector()

// IsChallengePage 使用默认检测器
func IsChallengePage(html string) bool {
	return defaultChallengeDetector.IsChallenge(html)
}
