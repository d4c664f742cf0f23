// cert_tool diagnostica y carga certificados A1 de las filiales y emite tokens de operador.
//
// Uso:
//
//	cert_tool inspect -pfx empresa.pfx -senha 123456
//	cert_tool seal    -empresa <id> -filial <id> -pfx empresa.pfx -senha 123456
//	cert_tool token   -empresa <id> -filial <id> -usuario <id> -rol fiscal
//
// La contraseña también puede venir en CERT_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/postgres"
	"github.com/jhoicas/notas-destinadas/pkg/config"
	"github.com/jhoicas/notas-destinadas/pkg/jwt"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/secretbox"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cfg, err := config.Load()
	if err != nil {
		fail("cargar configuración", err)
	}
	log := logger.New(logger.Config{Env: "development", Level: "warn"})

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "inspect":
		err = inspect(args, log)
	case "seal":
		err = seal(args, cfg, log)
	case "token":
		err = token(args, cfg)
	default:
		usage()
	}
	if err != nil {
		fail(cmd, err)
	}
}

func inspect(args []string, log *logger.Logger) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	path := fs.String("pfx", "", "ruta del .pfx")
	password := fs.String("senha", os.Getenv("CERT_PASSWORD"), "contraseña del certificado")
	_ = fs.Parse(args)

	pfx, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("no se pudo leer el archivo: %w", err)
	}
	fmt.Printf("Archivo %s: %d bytes\n", *path, len(pfx))

	info, err := notas.NewCredentialService(nil, nil, log).Inspect(pfx, *password)
	if err != nil {
		return err
	}
	printInfo(info)
	return nil
}

func seal(args []string, cfg *config.Config, log *logger.Logger) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	company := fs.String("empresa", "", "empresa")
	branch := fs.String("filial", "", "filial")
	path := fs.String("pfx", "", "ruta del .pfx")
	password := fs.String("senha", os.Getenv("CERT_PASSWORD"), "contraseña del certificado")
	_ = fs.Parse(args)

	pfx, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("no se pudo leer el archivo: %w", err)
	}
	box, err := secretbox.New(cfg.Crypto.SecretKey)
	if err != nil {
		return fmt.Errorf("CRYPTO_SECRET_KEY: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := notas.NewCredentialService(postgres.NewBranchRepository(pool), box, log)
	info, err := svc.Seal(ctx, entity.Tenant{CompanyID: *company, BranchID: *branch}, pfx, *password)
	if err != nil {
		return err
	}
	printInfo(info)
	fmt.Printf("Certificado guardado en la filial %s/%s\n", *company, *branch)
	return nil
}

func token(args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	company := fs.String("empresa", "", "empresa")
	branch := fs.String("filial", "", "filial (vacío = el operador la elige con X-Filial)")
	user := fs.String("usuario", "cli", "usuario")
	role := fs.String("rol", entity.RoleFiscal, "admin | fiscal | estoque")
	_ = fs.Parse(args)

	tok, err := jwt.Generate(cfg.JWT.Secret, jwt.Identity{
		UserID: *user, CompanyID: *company, BranchID: *branch, Role: *role,
	}, cfg.JWT.Issuer, cfg.JWT.Expiration)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func printInfo(info *notas.CertificateInfo) {
	fmt.Printf("Titular: %s\n", info.Subject)
	fmt.Printf("Válido hasta: %s", info.NotAfter.Format(time.DateOnly))
	if time.Now().After(info.NotAfter) {
		fmt.Print(" (VENCIDO)")
	}
	fmt.Println()
}

func fail(step string, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrCertificateFormat):
		msg = "contraseña incorrecta o archivo que no es PKCS#12: " + msg
	case errors.Is(err, domain.ErrNotFound):
		msg = "filial inexistente: " + msg
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", step, msg)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "uso: cert_tool inspect|seal|token [flags]")
	os.Exit(2)
}
