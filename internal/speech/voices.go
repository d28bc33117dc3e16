package speech

import "strings"

// DefaultVoice is used when a role has no dedicated mapping.
const DefaultVoice = "zh_female_linjianvhai_moon_bigtts"

// The host deliberately shares the consultant's voice so the debate reads as
// one continuous broadcast.
var roleVoices = map[string]string{
	"consultant": "zh_male_yuanboxiaoshu_moon_bigtts",
	"host":       "zh_male_yuanboxiaoshu_moon_bigtts",
	"bull":       "zh_male_yangguangqingnian_moon_bigtts",
	"bear":       "zh_female_zhixingnvsheng_mars_bigtts",
}

// VoiceForRole maps a debate persona to its fixed provider voice id.
func VoiceForRole(role string) string {
	if voice, ok := roleVoices[strings.ToLower(strings.TrimSpace(role))]; ok {
		return voice
	}
	return DefaultVoice
}
