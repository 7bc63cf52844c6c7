package orders

import "strings"

// Departments the shop ships to. Shipping orders must name one of these.
var departments = map[string]bool{
	"artigas":        true,
	"canelones":      true,
	"cerro largo":    true,
	"colonia":        true,
	"durazno":        true,
	"flores":         true,
	"florida":        true,
	"lavalleja":      true,
	"maldonado":      true,
	"montevideo":     true,
	"paysandú":       true,
	"río negro":      true,
	"rivera":         true,
	"rocha":          true,
	"salto":          true,
	"san josé":       true,
	"soriano":        true,
	"tacuarembó":     true,
	"treinta y tres": true,
}

func ValidDepartment(name string) bool {
	return departments[strings.ToLower(strings.TrimSpace(name))]
}
