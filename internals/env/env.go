package env

import (
	"log"
	"strconv"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

const DefaultPort = 57877

type EnvStruct struct {
	HOME        string `zog:"HOME"`
	PORT        int    `zog:"SHELLRUNNER_PORT"`
	LISTEN_ADDR string
	LISTEN_PROT string
	BASE_URL    string
}

var env *EnvStruct

var EnvSchema = z.Struct(z.Shape{
	"HOME": z.String(),
	"PORT": z.Int().Default(DefaultPort).GT(0, z.Message("SHELLRUNNER_PORT must be a valid port")).LT(65536, z.Message("SHELLRUNNER_PORT must be a valid port")),
})

func Get() *EnvStruct {
	if env == nil {
		env = &EnvStruct{}
		errs := EnvSchema.Parse(zenv.NewDataProvider(), env)
		if errs != nil {
			log.Fatal("[Shellrunner] Failed to parse environment variables ", z.Issues.Prettify(errs))
		}

		env.LISTEN_PROT = "http://"
		env.LISTEN_ADDR = "localhost:" + strconv.Itoa(env.PORT)
		env.BASE_URL = env.LISTEN_PROT + env.LISTEN_ADDR
	}
	return env
}
