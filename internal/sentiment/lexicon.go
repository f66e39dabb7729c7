package sentiment

import "regexp"

// defaultNodes is the built-in emotion lexicon. Severity encodes the fixed
// precedence between classes: comfort-seeking distress pre-empts everything,
// dont_cry outranks casual chatter, the rest are ordinary.
func defaultNodes() []node {
	return []node{
		{
			class:     ClassMorning,
			keywords:  []string{"早安", "早上好", "早啊", "哦哈哟", "早"},
			patterns:  compile(`早$`),
			emojis:    []string{"🌅", "☕", "🐔", "☀️"},
			baseScore: 5.0,
			severity:  SeverityOrdinary,
		},
		{
			class:     ClassSanity,
			keywords:  []string{"晚安", "睡了", "睡觉", "好梦", "累", "休息", "洗澡", "困"},
			patterns:  compile(`(去|要)睡`, `好{0,2}累`, `困.*死`),
			emojis:    []string{"💤", "🌙", "🛌", "🥱", "😪"},
			baseScore: 4.0,
			severity:  SeverityOrdinary,
		},
		{
			class:     ClassDontCry,
			keywords:  []string{"痛苦", "想哭", "破防", "崩溃", "难受", "甚至想笑", "地狱", "玉玉", "emo", "呜"},
			patterns:  compile(`好{0,2}(痛|苦)`, `呜{3,}`, `不想.*活`),
			emojis:    []string{"😭", "😢", "💔", "🥀", "💧"},
			baseScore: 6.0,
			severity:  SeverityHigh,
		},
		{
			class:     ClassComfort,
			keywords:  []string{"救命", "害怕", "恐怖", "吓人", "难过", "伤心", "委屈", "help"},
			patterns:  compile(`被.*吓`, `好{0,2}怕`, `救.*命`),
			emojis:    []string{"😱", "😨", "😖", "🆘"},
			baseScore: 6.0,
			severity:  SeverityUrgent,
		},
		{
			class:     ClassFail,
			keywords:  []string{"失败", "输了", "白给", "寄了", "后悔", "麻了"},
			patterns:  compile(`打.*不过`, `过.*不去`),
			emojis:    []string{"🏳️", "💀", "👎"},
			baseScore: 5.0,
			severity:  SeverityOrdinary,
		},
		{
			class:     ClassCompany,
			keywords:  []string{"孤独", "寂寞", "没人", "一个人", "无聊", "冷清"},
			patterns:  compile(`理.*我`),
			emojis:    []string{"🍃", "🍂", "🪹"},
			baseScore: 4.0,
			severity:  SeverityOrdinary,
		},
		{
			class:     ClassTrust,
			keywords:  []string{"抱抱", "贴贴", "喜欢", "爱", "老婆", "特雷西娅", "殿下", "想你"},
			patterns:  compile(`最.*喜欢`, `爱.*你`, `想.*你`),
			emojis:    []string{"❤️", "🥰", "🤗", "😘", "💍"},
			baseScore: 5.0,
			severity:  SeverityOrdinary,
		},
		{
			class:     ClassPoke,
			keywords:  []string{"戳", "揉", "摸", "捣"},
			emojis:    []string{"👈", "👆"},
			baseScore: 3.0,
			severity:  SeverityOrdinary,
		},
	}
}

// defaultModifiers: intensifiers amplify, diminishers soften, negations flip
// the sign so negated hits are discarded by the score filter.
func defaultModifiers() []modifierGroup {
	return []modifierGroup{
		{words: []string{"好", "太", "真", "非常", "超级", "死", "特别", "巨", "极其", "超", "爆"}, weight: 1.5},
		{words: []string{"比较", "还", "挺", "蛮"}, weight: 1.2},
		{words: []string{"一点", "有点", "有些", "似"}, weight: 0.8},
		{words: []string{"不", "没", "别", "勿", "无", "非", "假"}, weight: -1.0},
	}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
