// Command staff-token mints a dashboard bearer token for one staff member.
// Only the JWT settings are read from the environment.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/restaurant-checkout/pkg/auth"
	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

func main() {
	_ = godotenv.Load()

	id := flag.String("id", "", "staff id (uuid); generated when empty")
	name := flag.String("name", "", "display name")
	role := flag.String("role", string(enums.StaffRoleKitchen), "staff role: manager|kitchen")
	flag.Parse()

	var jwtCfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
		fail("load jwt config: %v", err)
	}

	staffRole, err := enums.ParseStaffRole(strings.TrimSpace(*role))
	if err != nil {
		fail("%v", err)
	}

	staffID := uuid.New()
	if *id != "" {
		if staffID, err = uuid.Parse(*id); err != nil {
			fail("invalid -id: %v", err)
		}
	}

	token, err := auth.MintStaffToken(jwtCfg, time.Now(), auth.StaffTokenPayload{
		StaffID: staffID,
		Name:    *name,
		Role:    staffRole,
	})
	if err != nil {
		fail("mint token: %v", err)
	}
	fmt.Println(token)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
