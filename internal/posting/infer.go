package posting

var (
	internshipMarkers = []string{"praksa", "internship"}
	juniorMarkers     = []string{"junior"}
)

// InferLevel scans the title, then the description, for internship or junior
// markers. The title wins when both mention a level. Defaults to junior.
func InferLevel(title, description string) Level {
	for _, text := range []string{title, description} {
		if ContainsAnyFold(text, internshipMarkers...) {
			return LevelInternship
		}
		if ContainsAnyFold(text, juniorMarkers...) {
			return LevelJunior
		}
	}
	return LevelJunior
}

// InferEmploymentType maps the free-form text of a detail page to an employment type.
// Full time wins over part time, which wins over internship. Defaults to full time.
func InferEmploymentType(text string) EmploymentType {
	switch {
	case ContainsAnyFold(text, "puno radno vrijeme", "full-time", "full time"):
		return FullTime
	case ContainsAnyFold(text, "skraćeno radno vrijeme", "part-time", "part time"):
		return PartTime
	case ContainsAnyFold(text, internshipMarkers...):
		return Internship
	default:
		return FullTime
	}
}

// NormalizeSalary maps the sources' "to be agreed" phrasings to DefaultSalary.
func NormalizeSalary(s string) string {
	switch Fold(s) {
	case "", "dogovorljivo", "fleksibilno", "po dogovoru", "negotiable":
		return DefaultSalary
	default:
		return s
	}
}
