// ABOUTME: Fixed vocabularies for grades, subjects and resource types
// ABOUTME: Registered as validation tags so forms reject unknown values locally

package portal

import (
	"slices"
	"strings"

	"github.com/2389/edushare/internal/validate"
)

// Grades lists every grade in school order.
var Grades = []string{
	"小学1年级", "小学2年级", "小学3年级", "小学4年级", "小学5年级", "预初",
	"初中1年级", "初中2年级", "初中3年级",
	"高中1年级", "高中2年级", "高中3年级",
}

var Subjects = []string{"语文", "数学", "英语", "物理", "化学", "生物", "历史", "地理", "政治"}

var ResourceTypes = []string{"课件", "教案", "学案", "作业", "试卷", "题集", "素材", "备课包", "其他"}

func init() {
	validate.RegisterValues("grade", Grades)
	validate.RegisterValues("subject", Subjects)
	validate.RegisterValues("restype", ResourceTypes)
}

// PrimaryGrades returns the primary school grades.
func PrimaryGrades() []string {
	return filterGrades(func(g string) bool { return strings.Contains(g, "小学") })
}

// MiddleGrades returns the middle school grades, including 预初.
func MiddleGrades() []string {
	return filterGrades(func(g string) bool { return strings.Contains(g, "初中") || g == "预初" })
}

// HighGrades returns the high school grades.
func HighGrades() []string {
	return filterGrades(func(g string) bool { return strings.Contains(g, "高中") })
}

func filterGrades(keep func(string) bool) []string {
	var out []string
	for _, g := range Grades {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}

// ToggleGrade adds g to grades, or removes it when already selected.
func ToggleGrade(grades []string, g string) []string {
	if i := slices.Index(grades, g); i >= 0 {
		return slices.Delete(slices.Clone(grades), i, i+1)
	}
	return append(slices.Clone(grades), g)
}
