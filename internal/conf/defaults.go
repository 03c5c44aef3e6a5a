// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Retkikartta")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("places.apikey", "")
	viper.SetDefault("places.baseurl", "https://maps.googleapis.com/maps/api/place")
	viper.SetDefault("places.photomaxwidth", 800)
	viper.SetDefault("places.cachettlminutes", 60)
	viper.SetDefault("places.requestspersecond", 2.0)
	viper.SetDefault("places.debug", false)

	viper.SetDefault("imagecache.debug", false)
	viper.SetDefault("imagecache.expirydays", 30)
	viper.SetDefault("imagecache.placeholderurl", "https://placehold.co/800x600?text=No+Image")
	viper.SetDefault("imagecache.edgettlminutes", 60)

	viper.SetDefault("blobstore.enabled", false)
	viper.SetDefault("blobstore.path", "blobs/")
	viper.SetDefault("blobstore.publicbase", "/image/blob")

	viper.SetDefault("refresh.enabled", true)
	viper.SetDefault("refresh.intervalhours", 24)
	viper.SetDefault("refresh.batchsize", 10)
	viper.SetDefault("refresh.delayms", 500)
	viper.SetDefault("refresh.staledays", 30)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "retkikartta.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "retkikartta")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "retkikartta")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
