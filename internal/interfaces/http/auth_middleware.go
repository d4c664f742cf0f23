package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/pkg/jwt"
)

// Locals keys de la identidad del operador en Fiber.
const (
	LocalUserID    = "user_id"
	LocalCompanyID = "company_id"
	LocalBranchID  = "branch_id"
	LocalRole      = "role"
)

// HeaderBranch filial elegida por el operador cuando el token no la fija.
const HeaderBranch = "X-Filial"

// AuthMiddleware valida el Bearer Token JWT y deja la identidad en c.Locals.
// La filial sale del token; si no viene, del header X-Filial.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		id, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		branch := id.BranchID
		if header := strings.TrimSpace(c.Get(HeaderBranch)); header != "" {
			if branch != "" && header != branch {
				return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "el token no habilita esa filial"})
			}
			branch = header
		}
		c.Locals(LocalUserID, id.UserID)
		c.Locals(LocalCompanyID, id.CompanyID)
		c.Locals(LocalBranchID, branch)
		c.Locals(LocalRole, id.Role)
		return c.Next()
	}
}

// RequireRole autoriza solo los roles indicados. Usar después de AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "token sin rol"})
		}
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para esta operación"})
	}
}

// RequireBranch exige filial (token o X-Filial) en las rutas por filial.
func RequireBranch() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetBranchID(c) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_BRANCH", Message: "filial requerida (header " + HeaderBranch + ")"})
		}
		return c.Next()
	}
}

func local(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string { return local(c, LocalUserID) }

// GetCompanyID devuelve el CompanyID del contexto (después del middleware de auth).
func GetCompanyID(c *fiber.Ctx) string { return local(c, LocalCompanyID) }

// GetBranchID filial del token o del header.
func GetBranchID(c *fiber.Ctx) string { return local(c, LocalBranchID) }

// GetRole rol del operador.
func GetRole(c *fiber.Ctx) string { return local(c, LocalRole) }

// tenantOf empresa, filial y operador de la petición.
func tenantOf(c *fiber.Ctx) entity.Tenant {
	return entity.Tenant{CompanyID: GetCompanyID(c), BranchID: GetBranchID(c), UserID: GetUserID(c)}
}
