package model

// Program describes a Higher Education degree program.
type Program struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	HasMajors bool     `json:"has_majors"`
	Majors    []string `json:"majors,omitempty"`
}

// BasicEducationLevels lists the valid grade levels for Basic Education.
var BasicEducationLevels = []string{
	"Kindergarten",
	"Grade 1", "Grade 2", "Grade 3", "Grade 4", "Grade 5", "Grade 6",
	"Grade 7", "Grade 8", "Grade 9", "Grade 10", "Grade 11", "Grade 12",
}

// HigherEducationPrograms is the static program catalog.
var HigherEducationPrograms = []Program{
	{Code: "BEEd", Name: "BACHELOR OF ELEMENTARY EDUCATION"},
	{Code: "BSNEd", Name: "BACHELOR OF SPECIAL NEEDS EDUCATION"},
	{Code: "BSEd", Name: "BACHELOR OF SECONDARY EDUCATION", HasMajors: true, Majors: []string{
		"ENGLISH", "FILIPINO", "MATHEMATICS", "SCIENCES", "SOCIAL STUDIES",
		"VALUES EDUCATION",
		"VALUES EDUCATION (Christian Theology)",
		"VALUES EDUCATION (Christian Education)",
		"VALUES EDUCATION (Christian Music)",
	}},
	{Code: "BTVTEd", Name: "BACHELOR OF TECHNICAL-VOCATIONAL TEACHER EDUCATION", HasMajors: true, Majors: []string{
		"FOOD SERVICE MANAGEMENT (FSM)",
	}},
	{Code: "BSA", Name: "BACHELOR OF SCIENCE IN ACCOUNTANCY"},
	{Code: "BSBA", Name: "BACHELOR OF SCIENCE IN BUSINESS ADMINISTRATION"},
}

// ProgramByCode looks up a program in the catalog.
func ProgramByCode(code string) (Program, bool) {
	for _, p := range HigherEducationPrograms {
		if p.Code == code {
			return p, true
		}
	}
	return Program{}, false
}

// ValidGradeLevel reports whether level is in the Basic Education catalog.
func ValidGradeLevel(level string) bool {
	for _, l := range BasicEducationLevels {
		if l == level {
			return true
		}
	}
	return false
}
