package render

import "github.com/helixir/paper-digest-service/internal/domain"

// headings are the fixed words of a Markdown report in one language.
type headings struct {
	authors    string
	published  string
	category   string
	journal    string
	summary    string
	highlights string
	analysis   string
	notCovered string
	quotes     string
	references string
	sections   map[string]string
}

var headingTable = map[domain.Language]headings{
	domain.LanguageEnglish: {
		authors: "Authors", published: "Published", category: "Category", journal: "Journal", summary: "Summary",
		highlights: "Key Highlights", analysis: "Comprehensive Analysis", notCovered: "_Not covered._",
		quotes: "Key Quotes", references: "Cited arXiv Papers",
	},
	domain.LanguageChinese: {
		authors: "作者", published: "发表日期", category: "分类", journal: "期刊", summary: "摘要",
		highlights: "核心要点", analysis: "深度分析", notCovered: "_未涉及。_",
		quotes: "原文摘录", references: "引用的 arXiv 论文",
		sections: map[string]string{
			domain.SectionMotivation:       "研究动机",
			domain.SectionKeyContributions: "主要贡献",
			domain.SectionMethodology:      "研究方法",
			domain.SectionResults:          "实验结果",
			domain.SectionLimitations:      "局限性",
			domain.SectionFutureWork:       "未来工作",
		},
	},
	domain.LanguageJapanese: {
		authors: "著者", published: "公開日", category: "分野", journal: "掲載誌", summary: "要約",
		highlights: "主なポイント", analysis: "詳細分析", notCovered: "_記載なし。_",
		quotes: "主な引用", references: "引用された arXiv 論文",
		sections: map[string]string{
			domain.SectionMotivation:       "研究の動機",
			domain.SectionKeyContributions: "主な貢献",
			domain.SectionMethodology:      "手法",
			domain.SectionResults:          "結果",
			domain.SectionLimitations:      "限界",
			domain.SectionFutureWork:       "今後の課題",
		},
	},
	domain.LanguageKorean: {
		authors: "저자", published: "발행일", category: "분야", journal: "저널", summary: "요약",
		highlights: "핵심 요점", analysis: "심층 분석", notCovered: "_다루지 않음._",
		quotes: "주요 인용", references: "인용된 arXiv 논문",
		sections: map[string]string{
			domain.SectionMotivation:       "연구 동기",
			domain.SectionKeyContributions: "주요 기여",
			domain.SectionMethodology:      "방법론",
			domain.SectionResults:          "결과",
			domain.SectionLimitations:      "한계",
			domain.SectionFutureWork:       "향후 연구",
		},
	},
	domain.LanguageGerman: {
		authors: "Autoren", published: "Veröffentlicht", category: "Kategorie", journal: "Zeitschrift", summary: "Zusammenfassung",
		highlights: "Kernpunkte", analysis: "Ausführliche Analyse", notCovered: "_Nicht behandelt._",
		quotes: "Wichtige Zitate", references: "Zitierte arXiv-Arbeiten",
		sections: map[string]string{
			domain.SectionMotivation:       "Motivation",
			domain.SectionKeyContributions: "Hauptbeiträge",
			domain.SectionMethodology:      "Methodik",
			domain.SectionResults:          "Ergebnisse",
			domain.SectionLimitations:      "Einschränkungen",
			domain.SectionFutureWork:       "Ausblick",
		},
	},
	domain.LanguageFrench: {
		authors: "Auteurs", published: "Publié", category: "Catégorie", journal: "Revue", summary: "Résumé",
		highlights: "Points clés", analysis: "Analyse détaillée", notCovered: "_Non abordé._",
		quotes: "Citations clés", references: "Articles arXiv cités",
		sections: map[string]string{
			domain.SectionMotivation:       "Motivation",
			domain.SectionKeyContributions: "Contributions principales",
			domain.SectionMethodology:      "Méthodologie",
			domain.SectionResults:          "Résultats",
			domain.SectionLimitations:      "Limites",
			domain.SectionFutureWork:       "Travaux futurs",
		},
	},
	domain.LanguageSpanish: {
		authors: "Autores", published: "Publicado", category: "Categoría", journal: "Revista", summary: "Resumen",
		highlights: "Puntos clave", analysis: "Análisis detallado", notCovered: "_No tratado._",
		quotes: "Citas clave", references: "Artículos de arXiv citados",
		sections: map[string]string{
			domain.SectionMotivation:       "Motivación",
			domain.SectionKeyContributions: "Contribuciones principales",
			domain.SectionMethodology:      "Metodología",
			domain.SectionResults:          "Resultados",
			domain.SectionLimitations:      "Limitaciones",
			domain.SectionFutureWork:       "Trabajo futuro",
		},
	},
}

// headingsFor falls back to English for a language without an entry.
func headingsFor(lang domain.Language) headings {
	if h, ok := headingTable[lang]; ok {
		return h
	}
	return headingTable[domain.LanguageEnglish]
}

// section returns the localized label, or label itself when none is known.
func (h headings) section(label string) string {
	if s, ok := h.sections[label]; ok {
		return s
	}
	return label
}
