package model

// Category is one of the fixed classification buckets.
type Category string

const (
	CategoryBugFix        Category = "bug_fix"
	CategoryFeature       Category = "feature"
	CategoryImprovement   Category = "improvement"
	CategoryDocumentation Category = "documentation"
	CategoryTest          Category = "test"
	CategoryConfig        Category = "config"
	CategoryOther         Category = "other"
)

// CategoryRule pairs a category with its ordered keyword list. Keywords are
// lower-case and matched as substrings of the lower-cased activity text.
type CategoryRule struct {
	Category    Category
	Description string
	Keywords    []string
}

// taxonomy is ordered by classification priority. The first rule with a
// matching keyword wins, so reordering it changes results.
var taxonomy = []CategoryRule{
	{
		Category:    CategoryBugFix,
		Description: "Bug fix",
		Keywords: []string{
			"fix", "bugfix", "hotfix", "patch", "resolve", "solved", "repair",
			"修复", "修正", "解决", "修改", "补丁", "热修复", "紧急修复", "bug",
			"fix:", "hotfix:", "patch:",
		},
	},
	{
		Category:    CategoryFeature,
		Description: "New feature",
		Keywords: []string{
			"feat", "feature", "add", "new", "implement", "create", "develop",
			"新增", "添加", "功能", "特性", "开发", "实现", "创建", "新功能",
			"feat:", "feature:",
		},
	},
	{
		Category:    CategoryImprovement,
		Description: "Improvement",
		Keywords: []string{
			"improve", "enhancement", "optimize", "refactor", "update", "upgrade", "enhance",
			"优化", "改进", "增强", "提升", "重构", "更新", "升级", "完善",
			"perf:", "refactor:", "style:",
		},
	},
	{
		Category:    CategoryDocumentation,
		Description: "Documentation",
		Keywords: []string{
			"docs", "documentation", "readme", "comment", "guide", "manual",
			"文档", "说明", "注释", "帮助", "指南", "手册",
			"docs:",
		},
	},
	{
		Category:    CategoryTest,
		Description: "Testing",
		Keywords: []string{
			"test", "testing", "spec", "unit test", "integration test",
			"测试", "单元测试", "集成测试", "测试用例",
			"test:",
		},
	},
	{
		Category:    CategoryConfig,
		Description: "Configuration",
		Keywords: []string{
			"config", "configuration", "setting", "env", "environment",
			"配置", "设置", "环境", "参数",
			"chore:", "ci:",
		},
	},
}

const otherDescription = "Other"

// Taxonomy returns a copy of the keyword rules in priority order. Other is
// not included; it is only ever assigned as the fallback.
func Taxonomy() []CategoryRule {
	rules := make([]CategoryRule, len(taxonomy))
	for i, r := range taxonomy {
		rules[i] = CategoryRule{
			Category:    r.Category,
			Description: r.Description,
			Keywords:    append([]string(nil), r.Keywords...),
		}
	}
	return rules
}

// AllCategories returns every category in priority order, ending with Other.
func AllCategories() []Category {
	out := make([]Category, 0, len(taxonomy)+1)
	for _, r := range taxonomy {
		out = append(out, r.Category)
	}
	return append(out, CategoryOther)
}

// Description returns the display description of the category, or the raw
// value for unknown categories.
func (c Category) Description() string {
	if c == CategoryOther {
		return otherDescription
	}
	for _, r := range taxonomy {
		if r.Category == c {
			return r.Description
		}
	}
	return string(c)
}
