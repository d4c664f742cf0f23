package entity

// Roles del operador que viajan en el token.
const (
	RoleAdmin   = "admin"   // configura la filial y el certificado
	RoleFiscal  = "fiscal"  // importa, manifiesta y registra notas
	RoleEstoque = "estoque" // da entrada y mantiene el catálogo
)
