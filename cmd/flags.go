package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bind maps a flag onto a config key. Only flags the user actually set
// override the file and environment.
func bind(v *viper.Viper, flag *pflag.Flag, key string) {
	if flag == nil {
		return
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
