// Package topicfilter 判断主题是否属于可生成路线图的教育/职业领域
package topicfilter

import (
	"regexp"
	"strings"
)

// Reason 拒绝原因
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonEmpty      Reason = "topic_required"
	ReasonBlocked    Reason = "topic_blocked"
	ReasonNotAllowed Reason = "topic_not_allowed"
)

const (
	blockedDetail    = "This topic is restricted. Please enter an educational/professional topic."
	notAllowedDetail = "Please enter an educational or professional topic (e.g., Data Science, Python, AWS, Accounting, Calculus, UX Design)."
)

var (
	blockedPattern = regexp.MustCompile(`(?i)\b(sex|sexual|porn|pornography|erotic|fetish|nsfw|adult\s*content|xxx|nude|explicit)\b`)

	allowedPattern = regexp.MustCompile(`(?i)\b(` +
		`software|programming|coding|computer\s*science|python|java|c\+\+|react|angular|vue|web\s*development|` +
		`data\s*(science|analytics|engineering)|machine\s*learning|artificial\s*intelligence|ai|deep\s*learning|` +
		`cloud|aws|azure|gcp|devops|kubernetes|docker|cyber\s*security|networking|database|sql|nosql|postgres|mysql|` +
		`math|calculus|algebra|statistics|probability|physics|chemistry|biology|economics|finance|accounting|` +
		`marketing|operations|supply\s*chain|design|ux|ui|product\s*management|project\s*management|` +
		`entrepreneurship|business|hr|law|medicine|nursing|pharmacy|mechanical|electrical|civil|electronics|` +
		`robotics|embedded|blockchain|android|ios|flutter|kotlin|swift|django|flask|node|express|typescript|` +
		`go|rust|r\s*language|tableau|power\s*bi|excel|pandas|numpy|matplotlib|sql\s*server|oracle` +
		`)\b`)
)

// Verdict 判定结果
type Verdict struct {
	Allowed bool
	Topic   string
	Reason  Reason
	Details string
}

// Filter 主题过滤器；先查黑名单，再查白名单
type Filter struct{}

func New() *Filter { return &Filter{} }

// Classify 对去除首尾空白后的主题做判定
func (f *Filter) Classify(topic string) Verdict {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return Verdict{Topic: topic, Reason: ReasonEmpty}
	case blockedPattern.MatchString(topic):
		return Verdict{Topic: topic, Reason: ReasonBlocked, Details: blockedDetail}
	case !allowedPattern.MatchString(topic):
		return Verdict{Topic: topic, Reason: ReasonNotAllowed, Details: notAllowedDetail}
	default:
		return Verdict{Allowed: true, Topic: topic}
	}
}
